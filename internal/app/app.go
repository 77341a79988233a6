// -----------------------------------------------------------------------
// Application Container - wires storage, services, and handlers together
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/curio/internal/common"
	"github.com/ternarybob/curio/internal/handlers"
	"github.com/ternarybob/curio/internal/interfaces"
	"github.com/ternarybob/curio/internal/services/digest"
	"github.com/ternarybob/curio/internal/services/embeddings"
	"github.com/ternarybob/curio/internal/services/events"
	"github.com/ternarybob/curio/internal/services/fetcher"
	"github.com/ternarybob/curio/internal/services/ingestion"
	"github.com/ternarybob/curio/internal/services/jobs"
	"github.com/ternarybob/curio/internal/services/llm"
	"github.com/ternarybob/curio/internal/services/mailer"
	"github.com/ternarybob/curio/internal/services/research"
	"github.com/ternarybob/curio/internal/services/scheduler"
	"github.com/ternarybob/curio/internal/services/search"
	"github.com/ternarybob/curio/internal/services/summary"
	"github.com/ternarybob/curio/internal/services/transcripts"
	"github.com/ternarybob/curio/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	ctx       context.Context
	cancelCtx context.CancelFunc

	// Storage
	StorageManager interfaces.StorageManager

	// Core services
	EventService   interfaces.EventService
	LLMService     interfaces.LLMService
	SummaryService interfaces.SummaryService
	FetcherService interfaces.ContentFetcher
	Transcripts    interfaces.TranscriptService
	WebSearch      interfaces.WebSearchService
	VideoSearch    interfaces.VideoSearchService
	MailService    interfaces.MailService

	// Pipeline services
	IngestionService *ingestion.Service
	ResearchService  *research.Service
	EmbeddingService *embeddings.Service
	DigestService    *digest.Service
	Tracker          *jobs.Tracker
	Runner           *jobs.Runner
	SchedulerService *scheduler.Service

	// Connection registry and HTTP handlers
	Registry         *handlers.Registry
	WSHandler        *handlers.WebSocketHandler
	JobHandler       *handlers.JobHandler
	IngestHandler    *handlers.IngestHandler
	ArticleHandler   *handlers.ArticleHandler
	EmbeddingHandler *handlers.EmbeddingHandler
	DigestHandler    *handlers.DigestHandler
	StatusHandler    *handlers.StatusHandler
}

// New creates and initializes the application with all its dependencies.
// Initialization order matters: storage first, then services that depend
// on it, then the job runner, then the scheduler and HTTP handlers.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		Config:    config,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := app.initStorage(); err != nil {
		cancel()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		cancel()
		app.StorageManager.Close()
		return nil, err
	}

	app.initHandlers()

	// Reconcile jobs left running by a previous process before anything
	// new is launched.
	if err := app.Runner.SweepStale(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to sweep stale jobs")
	}

	if err := app.SchedulerService.Start(); err != nil {
		cancel()
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info().Msg("Application initialized")
	return app, nil
}

func (a *App) initStorage() error {
	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = manager
	return nil
}

func (a *App) initServices() error {
	a.EventService = events.NewService(a.Logger)

	llmService, err := llm.NewLLMService(&a.Config.LLM, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	a.LLMService = llmService
	a.SummaryService = summary.NewService(a.LLMService, a.Logger)

	fetcherService, err := fetcher.NewService(&a.Config.Ingestion, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize content fetcher: %w", err)
	}
	a.FetcherService = fetcherService

	transcriptService, err := transcripts.NewService(&a.Config.Search, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize transcript service: %w", err)
	}
	a.Transcripts = transcriptService

	webSearch, err := search.NewTavilyService(&a.Config.Search, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize web search: %w", err)
	}
	a.WebSearch = webSearch

	videoSearch, err := search.NewYouTubeService(&a.Config.Search, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize video search: %w", err)
	}
	a.VideoSearch = videoSearch

	articles := a.StorageManager.ArticleStorage()
	jobStorage := a.StorageManager.JobStorage()

	a.IngestionService = ingestion.NewService(
		articles,
		a.WebSearch,
		a.FetcherService,
		a.Transcripts,
		a.SummaryService,
		a.EventService,
		&a.Config.Ingestion,
		a.Logger,
	)
	a.ResearchService = research.NewService(a.VideoSearch, a.IngestionService, a.Logger)
	a.EmbeddingService = embeddings.NewService(articles, a.LLMService, &a.Config.Embeddings, a.Logger)

	a.Tracker = jobs.NewTracker(jobStorage, a.EventService, a.Logger)
	a.Runner = jobs.NewRunner(
		jobStorage,
		a.Tracker,
		a.IngestionService,
		a.ResearchService,
		a.EmbeddingService,
		a.Logger,
	)

	a.MailService = mailer.NewService(&a.Config.SMTP, a.Logger)
	a.DigestService = digest.NewService(articles, a.MailService, &a.Config.SMTP, a.Logger)

	a.SchedulerService = scheduler.NewService(&a.Config.Scheduler, jobStorage, a.Runner, a.DigestService, a.Logger)

	return nil
}

func (a *App) initHandlers() {
	articles := a.StorageManager.ArticleStorage()
	jobStorage := a.StorageManager.JobStorage()

	a.Registry = handlers.NewRegistry(a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.Registry, jobStorage, a.EventService, &a.Config.WebSocket, a.Logger)
	a.JobHandler = handlers.NewJobHandler(jobStorage, a.Runner, &a.Config.Search, a.Logger)
	a.IngestHandler = handlers.NewIngestHandler(a.IngestionService, a.Logger)
	a.ArticleHandler = handlers.NewArticleHandler(articles, a.Logger)
	a.EmbeddingHandler = handlers.NewEmbeddingHandler(a.EmbeddingService, articles, a.Logger)
	a.DigestHandler = handlers.NewDigestHandler(a.DigestService, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(jobStorage, articles, a.Registry, a.Logger)
}

// Close shuts down all components in reverse initialization order
func (a *App) Close() error {
	a.Logger.Info().Msg("Shutting down application")

	a.cancelCtx()

	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	if a.Runner != nil {
		if err := a.Runner.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Job runner shutdown reported an error")
		}
	}

	if a.Registry != nil {
		if err := a.Registry.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Connection registry shutdown reported an error")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Event service shutdown reported an error")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Storage shutdown failed")
			return err
		}
	}

	a.Logger.Info().Msg("Application stopped")
	return nil
}
