package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	httpadapter "github.com/kirillkom/pii-redactor/internal/adapters/http"
	"github.com/kirillkom/pii-redactor/internal/config"
	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/usecase"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/extractor"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/identity"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/resilience"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/runs"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/pii-redactor/internal/observability/metrics"
)

// App is the API process: pipeline runner, redaction, read model and HTTP router.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	Runner    *usecase.PipelineRunnerUseCase
	Redactor  *usecase.RedactDocumentUseCase
	Documents *usecase.DocumentQueryUseCase
	Downloads *usecase.DownloadUseCase
	Verifier  *identity.Verifier

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	m := metrics.NewHTTPServerMetrics("api")
	executor := resilience.NewExecutor(cfg.Resilience()).WithStateListener(m.ObserveBreakerState)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo := postgres.NewDocumentRepository(db)
	eventRepo := postgres.NewEventRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	bus, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	verifier, err := identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		bus.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init identity: %w", err)
	}
	users := identity.ContextProvider{}

	llm := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaTextModel, cfg.OllamaVisionModel, ollama.Options{
		Timeout:            cfg.OllamaTimeout(),
		ResilienceExecutor: executor,
	})
	extractors := extractor.NewRouter().
		Register(pdf.NewExtractor(storage).WithMaxBytes(cfg.MaxUploadBytes), domain.FileKindPDF).
		Register(plaintext.NewExtractor(storage).WithMaxBytes(cfg.MaxUploadBytes), domain.FileKindText).
		Register(ollama.NewVisionExtractor(llm, storage).WithMaxBytes(cfg.MaxUploadBytes), domain.FileKindPNG, domain.FileKindJPEG, domain.FileKindTIFF)

	processor := usecase.NewProcessDocumentUseCase(storage, users, repo, extractors, ollama.NewDetector(llm), bus, logger)
	registry := runs.NewRegistry(cfg.RunTTL(), 0)
	m.TrackRuns(registry.Len)
	runner := usecase.NewPipelineRunnerUseCase(
		processor,
		users,
		registry,
		m,
		cfg.PipelineTimeout(),
		logger,
	)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,

		Runner:    runner,
		Redactor:  usecase.NewRedactDocumentUseCase(repo, users, ollama.NewRewriter(llm), bus, logger),
		Documents: usecase.NewDocumentQueryUseCase(repo, users, eventRepo, cfg.DashboardRecentLimit),
		Downloads: usecase.NewDownloadUseCase(repo, users, storage),
		Verifier:  verifier,

		closeFn: func() {
			bus.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Handler() http.Handler {
	return httpadapter.NewRouter(a.Config, httpadapter.Services{
		Runner:    a.Runner,
		Redactor:  a.Redactor,
		Documents: a.Documents,
		Downloads: a.Downloads,
		Dashboard: a.Documents,
		Verifier:  a.Verifier,
		Metrics:   a.Metrics,
	}).Handler()
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// Worker is the audit process: it consumes lifecycle events into the document_events table.
type Worker struct {
	Config  config.Config
	Events  *nats.EventBus
	Audit   *usecase.AuditTrailUseCase
	Metrics *metrics.WorkerMetrics

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Worker, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	bus, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: resilience.NewExecutor(cfg.Resilience()),
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	return &Worker{
		Config:  cfg,
		Events:  bus,
		Audit:   usecase.NewAuditTrailUseCase(postgres.NewEventRepository(db), logger),
		Metrics: metrics.NewWorkerMetrics("worker"),
		closeFn: func() {
			bus.Close()
			_ = db.Close()
		},
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.NewDocumentRepository(db).EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}
