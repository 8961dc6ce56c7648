package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lake2804/ChatPDF/internal/core/domain"
	"github.com/lake2804/ChatPDF/internal/core/ports"
)

// IngestUseCase runs the full pipeline for one upload synchronously:
// detect, store, parse, chunk, embed, index. The response reports how many
// chunks made it into the index.
type IngestUseCase struct {
	parser    ports.Parser
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectors   ports.VectorStore
	storage   ports.ObjectStorage
	ingestLog ports.IngestLog
	events    ports.EventPublisher
	logger    *slog.Logger

	maxUploadBytes int64
	embedBatchSize int
}

func NewIngestUseCase(
	parser ports.Parser,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectors ports.VectorStore,
	storage ports.ObjectStorage,
	ingestLog ports.IngestLog,
	events ports.EventPublisher,
	logger *slog.Logger,
	maxUploadBytes int64,
	embedBatchSize int,
) *IngestUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	if embedBatchSize <= 0 {
		embedBatchSize = 100
	}
	return &IngestUseCase{
		parser:         parser,
		chunker:        chunker,
		embedder:       embedder,
		vectors:        vectors,
		storage:        storage,
		ingestLog:      ingestLog,
		events:         events,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
		embedBatchSize: embedBatchSize,
	}
}

func (uc *IngestUseCase) Ingest(ctx context.Context, filename string, size int64, body io.Reader) (*domain.IngestResult, error) {
	fileType, err := domain.DetectFileType(filename)
	if err != nil {
		return nil, err
	}
	if size > uc.maxUploadBytes {
		return nil, domain.WrapError(domain.ErrUnsupportedFormat, "ingest",
			fmt.Errorf("file size %d exceeds limit %d", size, uc.maxUploadBytes))
	}

	// Size from the request is advisory; the hard cap applies while reading.
	data, err := io.ReadAll(io.LimitReader(body, uc.maxUploadBytes+1))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
	}
	if int64(len(data)) > uc.maxUploadBytes {
		return nil, domain.WrapError(domain.ErrUnsupportedFormat, "ingest",
			fmt.Errorf("upload exceeds limit %d", uc.maxUploadBytes))
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("empty upload"))
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		FileType:    fileType,
		Size:        int64(len(data)),
		StoragePath: fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)),
		Status:      domain.StatusUploaded,
		UploadedAt:  now,
		UpdatedAt:   now,
	}

	if err := uc.storage.Save(ctx, doc.StoragePath, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	uc.logCreate(ctx, doc)

	uc.setStatus(ctx, doc, domain.StatusParsing, 0, "")
	segments, err := uc.parser.Parse(ctx, doc, data)
	if err != nil {
		uc.setStatus(ctx, doc, domain.StatusParseFailed, 0, err.Error())
		return nil, err
	}
	if len(segments) == 0 {
		err := domain.WrapError(domain.ErrParseFailed, "parse", fmt.Errorf("no extractable content"))
		uc.setStatus(ctx, doc, domain.StatusParseFailed, 0, err.Error())
		return nil, err
	}

	// Chunk windows never cross segment boundaries.
	chunks := make([]domain.Chunk, 0, len(segments))
	for _, segment := range segments {
		for _, text := range uc.chunker.Split(segment.Text) {
			seq := len(chunks)
			chunks = append(chunks, domain.Chunk{
				ID:          domain.ChunkID(doc.ID, seq),
				DocumentID:  doc.ID,
				Seq:         seq,
				SourceFile:  doc.Filename,
				FileType:    doc.FileType,
				Text:        text,
				Page:        segment.Page,
				Slide:       segment.Slide,
				ContentType: segment.ContentType,
			})
		}
	}
	if len(chunks) == 0 {
		err := domain.WrapError(domain.ErrParseFailed, "chunk", fmt.Errorf("no indexable chunks"))
		uc.setStatus(ctx, doc, domain.StatusParseFailed, 0, err.Error())
		return nil, err
	}
	uc.setStatus(ctx, doc, domain.StatusChunked, 0, "")

	uc.setStatus(ctx, doc, domain.StatusEmbedding, 0, "")
	indexed, err := uc.indexChunks(ctx, chunks)
	result := &domain.IngestResult{
		Document:      doc,
		ChunksTotal:   len(chunks),
		ChunksIndexed: indexed,
	}
	if err != nil {
		uc.setStatus(ctx, doc, domain.StatusEmbedFailed, indexed, err.Error())
		if indexed > 0 {
			return result, &domain.PartialIndexError{Indexed: indexed, Total: len(chunks), Err: err}
		}
		return nil, err
	}

	doc.Status = domain.StatusIndexed
	uc.setStatus(ctx, doc, domain.StatusIndexed, indexed, "")

	if uc.events != nil {
		if err := uc.events.PublishDocumentIndexed(ctx, doc, indexed); err != nil {
			uc.logger.Warn("publish_document_indexed_failed", "doc_id", doc.ID, "error", err)
		}
	}

	uc.logger.Info("document_indexed",
		"doc_id", doc.ID,
		"filename", doc.Filename,
		"file_type", string(doc.FileType),
		"chunks", indexed,
	)
	return result, nil
}

// indexChunks embeds and upserts in batches so a late failure keeps the
// earlier batches in the index. Returns how many chunks were indexed.
func (uc *IngestUseCase) indexChunks(ctx context.Context, chunks []domain.Chunk) (int, error) {
	indexed := 0
	for start := 0; start < len(chunks); start += uc.embedBatchSize {
		end := start + uc.embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, 0, len(batch))
		for _, chunk := range batch {
			texts = append(texts, chunk.Text)
		}

		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return indexed, err
		}
		if err := uc.vectors.Upsert(ctx, batch, vectors); err != nil {
			return indexed, err
		}
		indexed += len(batch)
	}
	return indexed, nil
}

// Audit log writes are best-effort; the index is the source of truth.
func (uc *IngestUseCase) logCreate(ctx context.Context, doc *domain.Document) {
	if uc.ingestLog == nil {
		return
	}
	if err := uc.ingestLog.Create(ctx, doc); err != nil {
		uc.logger.Warn("ingest_log_create_failed", "doc_id", doc.ID, "error", err)
	}
}

func (uc *IngestUseCase) setStatus(ctx context.Context, doc *domain.Document, status domain.IngestStatus, chunksIndexed int, errMessage string) {
	doc.Status = status
	doc.UpdatedAt = time.Now().UTC()
	if errMessage != "" {
		doc.Error = errMessage
	}
	if uc.ingestLog == nil {
		return
	}
	if err := uc.ingestLog.UpdateStatus(ctx, doc.ID, status, chunksIndexed, errMessage); err != nil {
		uc.logger.Warn("ingest_log_update_failed", "doc_id", doc.ID, "status", string(status), "error", err)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
