package ports

import (
	"context"
	"io"

	"github.com/lake2804/ChatPDF/internal/core/domain"
)

// DocumentIngestor is the inbound contract for the full ingest pipeline:
// parse, chunk, embed and index one uploaded file synchronously.
type DocumentIngestor interface {
	Ingest(ctx context.Context, filename string, size int64, body io.Reader) (*domain.IngestResult, error)
}

// QueryService is the inbound contract for retrieval-augmented answering.
type QueryService interface {
	Ask(ctx context.Context, question string, k int) (*domain.Answer, error)
	// AskStream emits answer fragments through emit strictly in order.
	// Emission stops on a best-effort basis when emit returns an error or
	// the context is cancelled. The returned answer carries the final
	// citation list.
	AskStream(ctx context.Context, question string, k int, emit func(delta string) error) (*domain.Answer, error)
	// Summarize is Ask with the question optional; an empty question uses
	// the default summary instruction over a broad retrieval sample.
	Summarize(ctx context.Context, question string) (*domain.Answer, error)
}

// IndexAdmin exposes destructive maintenance of the index.
type IndexAdmin interface {
	Reset(ctx context.Context) error
}
