package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lake2804/ChatPDF/internal/core/domain"
	"github.com/lake2804/ChatPDF/internal/infrastructure/resilience"
)

const (
	subjectDocumentIndexed = "chatpdf.document.indexed"
	subjectIndexReset      = "chatpdf.index.reset"
)

// Publisher broadcasts ingest lifecycle events. Delivery is
// fire-and-forget: subscribers that miss an event resynchronize from the
// index, so publish failures never fail the operation that raised them.
type Publisher struct {
	conn     *nats.Conn
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func New(url string, options Options) (*Publisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("chatpdf-api"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{
		conn:     conn,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

type documentIndexedEvent struct {
	DocumentID    string    `json:"document_id"`
	Filename      string    `json:"filename"`
	FileType      string    `json:"file_type"`
	ChunksIndexed int       `json:"chunks_indexed"`
	IndexedAt     time.Time `json:"indexed_at"`
}

type indexResetEvent struct {
	ResetAt time.Time `json:"reset_at"`
}

func (p *Publisher) PublishDocumentIndexed(ctx context.Context, doc *domain.Document, chunksIndexed int) error {
	return p.publish(ctx, subjectDocumentIndexed, documentIndexedEvent{
		DocumentID:    doc.ID,
		Filename:      doc.Filename,
		FileType:      string(doc.FileType),
		ChunksIndexed: chunksIndexed,
		IndexedAt:     time.Now().UTC(),
	})
}

func (p *Publisher) PublishIndexReset(ctx context.Context) error {
	return p.publish(ctx, subjectIndexReset, indexResetEvent{ResetAt: time.Now().UTC()})
}

func (p *Publisher) publish(ctx context.Context, subject string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}

	call := func(_ context.Context) error {
		if err := p.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "publish event", err)
	}
	return nil
}
