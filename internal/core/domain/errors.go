package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat rejects an upload by extension or size before
	// any content is read. User-correctable, never retried.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrParseFailed marks a malformed or corrupt file.
	ErrParseFailed = errors.New("parse failed")
	// ErrEmbeddingProvider marks auth/quota failures from the embedding
	// service that survived retry.
	ErrEmbeddingProvider = errors.New("embedding provider failure")
	// ErrVectorStoreUnavailable marks an unreachable index.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
	// ErrEmptyIndex marks a query or summary attempted with no indexed
	// chunks. User-correctable: upload a document first.
	ErrEmptyIndex = errors.New("no documents indexed")
	// ErrGeneration marks a generative model failure or refusal.
	ErrGeneration = errors.New("generation failure")

	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// PartialIndexError reports an ingestion that indexed some chunks before a
// later batch failed. Callers must be able to tell a 7/10 partial from a
// 10/10 success, so the counts travel with the error.
type PartialIndexError struct {
	Indexed int
	Total   int
	Err     error
}

func (e *PartialIndexError) Error() string {
	return fmt.Sprintf("indexed %d of %d chunks: %v", e.Indexed, e.Total, e.Err)
}

func (e *PartialIndexError) Unwrap() error {
	return e.Err
}
