package usecase

import (
	"context"
	"log/slog"

	"github.com/lake2804/ChatPDF/internal/core/ports"
)

// ResetUseCase drops the whole index and the stored uploads behind it.
type ResetUseCase struct {
	vectors ports.VectorStore
	storage ports.ObjectStorage
	events  ports.EventPublisher
	logger  *slog.Logger
}

func NewResetUseCase(vectors ports.VectorStore, storage ports.ObjectStorage, events ports.EventPublisher, logger *slog.Logger) *ResetUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetUseCase{vectors: vectors, storage: storage, events: events, logger: logger}
}

func (uc *ResetUseCase) Reset(ctx context.Context) error {
	if err := uc.vectors.DeleteCollection(ctx); err != nil {
		return err
	}

	// Stored uploads are secondary to the index; a cleanup failure leaves
	// orphan files, not stale answers.
	if uc.storage != nil {
		if err := uc.storage.RemoveAll(ctx); err != nil {
			uc.logger.Warn("storage_cleanup_failed", "error", err)
		}
	}

	if uc.events != nil {
		if err := uc.events.PublishIndexReset(ctx); err != nil {
			uc.logger.Warn("publish_index_reset_failed", "error", err)
		}
	}

	uc.logger.Info("index_reset")
	return nil
}
