package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lake2804/ChatPDF/internal/config"
	"github.com/lake2804/ChatPDF/internal/core/ports"
	"github.com/lake2804/ChatPDF/internal/core/usecase"
	"github.com/lake2804/ChatPDF/internal/infrastructure/chunking"
	natsevents "github.com/lake2804/ChatPDF/internal/infrastructure/events/nats"
	"github.com/lake2804/ChatPDF/internal/infrastructure/llm/gemini"
	"github.com/lake2804/ChatPDF/internal/infrastructure/parser"
	"github.com/lake2804/ChatPDF/internal/infrastructure/repository/postgres"
	"github.com/lake2804/ChatPDF/internal/infrastructure/resilience"
	"github.com/lake2804/ChatPDF/internal/infrastructure/storage/localfs"
	"github.com/lake2804/ChatPDF/internal/infrastructure/vector/qdrant"
	"github.com/lake2804/ChatPDF/internal/observability/metrics"
)

// App wires the infrastructure into the inbound ports. The postgres audit
// log and NATS publisher are optional; their absence disables the feature,
// never the service.
type App struct {
	Config  config.Config
	Metrics *metrics.HTTPServerMetrics

	IngestUC ports.DocumentIngestor
	QueryUC  ports.QueryService
	ResetUC  ports.IndexAdmin
	Vectors  ports.VectorStore

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	geminiClient := gemini.New(
		cfg.GeminiBaseURL,
		cfg.GeminiAPIKey,
		cfg.GeminiGenModel,
		cfg.GeminiEmbedModel,
		cfg.GeminiVisionModel,
		executor,
	)
	embedder := gemini.NewEmbedder(geminiClient)
	generator := gemini.NewGenerator(geminiClient, cfg.ContextBudgetChars)
	vision := gemini.NewVision(geminiClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbeddingDim, executor)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	docParser := parser.New(vision)

	var closers []func()

	var ingestLog ports.IngestLog
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		log := postgres.NewIngestLog(db)
		if err := log.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		ingestLog = log
		closers = append(closers, func() { _ = db.Close() })
	}

	var events ports.EventPublisher
	if cfg.NATSURL != "" {
		publisher, err := natsevents.New(cfg.NATSURL, natsevents.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		events = publisher
		closers = append(closers, publisher.Close)
	}

	ingestUC := usecase.NewIngestUseCase(
		docParser,
		chunker,
		embedder,
		vectorDB,
		storage,
		ingestLog,
		events,
		logger,
		cfg.MaxUploadBytes(),
		0,
	)
	queryUC := usecase.NewQueryUseCase(embedder, vectorDB, generator, logger, cfg.DefaultK, cfg.SummaryK)
	resetUC := usecase.NewResetUseCase(vectorDB, storage, events, logger)

	return &App{
		Config:  cfg,
		Metrics: metrics.NewHTTPServerMetrics("chatpdf-api"),

		IngestUC: ingestUC,
		QueryUC:  queryUC,
		ResetUC:  resetUC,
		Vectors:  vectorDB,

		closeFn: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
