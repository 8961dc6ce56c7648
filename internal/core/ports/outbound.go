package ports

import (
	"context"
	"io"

	"github.com/lake2804/ChatPDF/internal/core/domain"
)

// Parser extracts normalized text segments from a stored upload. For image
// content it delegates to a vision model and tags the segment accordingly.
type Parser interface {
	Parse(ctx context.Context, doc *domain.Document, data []byte) ([]domain.Segment, error)
}

// Chunker splits one segment's text into overlapping windows. Windows
// never cross segment boundaries; the caller applies it per segment.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds fixed-dimension vectors for chunk and query text in the
// same embedding space.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the persistent index over chunk embeddings.
type VectorStore interface {
	// Upsert indexes chunks with their vectors, idempotent by chunk id.
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	// Search returns up to limit chunks ordered by descending score.
	// An empty index yields an empty result, not an error.
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedChunk, error)
	// DeleteCollection drops the whole collection. Deleting a collection
	// that does not exist is not an error.
	DeleteCollection(ctx context.Context) error
	Ping(ctx context.Context) error
}

// VisionModel produces text from image bytes.
type VisionModel interface {
	Caption(ctx context.Context, image []byte, mimeType string) (string, error)
	OCR(ctx context.Context, image []byte, mimeType string) (string, error)
}

// AnswerGenerator builds a grounded prompt from retrieved chunks and calls
// the generative model.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error)
	// StreamAnswer emits the answer incrementally through emit and returns
	// the full text. A non-nil error from emit stops generation.
	StreamAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk, emit func(delta string) error) (string, error)
}

// ObjectStorage persists raw uploads. Not authoritative for indexing.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	RemoveAll(ctx context.Context) error
}

// IngestLog records ingest runs and their state transitions for
// operational audit. Queries never read it.
type IngestLog interface {
	Create(ctx context.Context, doc *domain.Document) error
	UpdateStatus(ctx context.Context, id string, status domain.IngestStatus, chunksIndexed int, errMessage string) error
}

// EventPublisher broadcasts ingest and reset events to interested
// consumers. Publication is fire-and-forget.
type EventPublisher interface {
	PublishDocumentIndexed(ctx context.Context, doc *domain.Document, chunksIndexed int) error
	PublishIndexReset(ctx context.Context) error
}
