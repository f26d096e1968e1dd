package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LatVAlY/specWise/features/job"
	"github.com/LatVAlY/specWise/features/search"
	"github.com/LatVAlY/specWise/features/stats"
	"github.com/LatVAlY/specWise/internal/adapter/gemini"
	"github.com/LatVAlY/specWise/internal/adapter/openrouter"
	"github.com/LatVAlY/specWise/internal/adapter/reranker"
	"github.com/LatVAlY/specWise/internal/classify"
	"github.com/LatVAlY/specWise/internal/completion"
	"github.com/LatVAlY/specWise/internal/config"
	"github.com/LatVAlY/specWise/internal/document"
	"github.com/LatVAlY/specWise/internal/extract"
	"github.com/LatVAlY/specWise/internal/middleware"
	"github.com/LatVAlY/specWise/internal/pipeline"
	"github.com/LatVAlY/specWise/internal/reference"
	"github.com/LatVAlY/specWise/internal/retrieval"
	"github.com/LatVAlY/specWise/internal/worker"
)

// Options overrides the externally backed adapters New would otherwise build from config.
type Options struct {
	Completer completion.Completer
	Embedder  worker.Embedder
	Pages     pipeline.PageSource
}

type App struct {
	Handler         http.Handler
	JobService      *job.Service
	Coordinator     *pipeline.Coordinator
	ProcessConsumer *worker.ProcessConsumer
	// IndexConsumer is nil when no embedder or vector store is available.
	IndexConsumer *worker.IndexConsumer

	cfg *config.Config
}

func New(
	ctx context.Context,
	cfg *config.Config,
	db *sql.DB,
	vecStore VectorStore,
	taskPub TaskPublisher,
	logger *slog.Logger,
	opts *Options,
) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	completer := opts.Completer
	if completer == nil {
		c, err := NewCompleter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		completer = c
	}
	completer = completion.NewRateLimited(completer, cfg.CompletionRPM)

	embedder := opts.Embedder
	if embedder == nil && cfg.GeminiAPIKey != "" {
		e, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.GeminiEmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("gemini embedder: %w", err)
		}
		embedder = e
	}

	pages := opts.Pages
	if pages == nil {
		pages = document.NewPostgresRepo(db)
	}

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	var itemIndex job.ItemIndex
	if vecStore != nil {
		itemIndex = vecStore
	}
	jobService := job.NewService(jobRepo, taskPub, itemIndex, logger)
	jobHandler := job.NewHandler(jobService)

	// Pipeline
	var indexer pipeline.Indexer
	if vecStore != nil {
		indexer = worker.NewIndexPublisher(taskPub)
	}
	coordinator, err := NewCoordinator(cfg, completer, jobRepo, pages, indexer)
	if err != nil {
		return nil, err
	}

	// Feature: Stats
	var itemCounter stats.ItemCounter
	if vecStore != nil {
		itemCounter = vecStore
	}
	statsHandler := stats.NewHandler(jobService, itemCounter)

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /jobs", middleware.CorrelationID(middleware.CORS(jobHandler.Create)))
	mux.Handle("GET /jobs", middleware.CorrelationID(middleware.CORS(jobHandler.List)))
	mux.Handle("GET /jobs/{id}", middleware.CorrelationID(middleware.CORS(jobHandler.Get)))
	mux.Handle("DELETE /jobs/{id}", middleware.CorrelationID(middleware.CORS(jobHandler.Delete)))
	mux.Handle("POST /jobs/{id}/cancel", middleware.CorrelationID(middleware.CORS(jobHandler.Cancel)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(middleware.CORS(jobHandler.Retry)))
	mux.Handle("GET /jobs/{id}/items", middleware.CorrelationID(middleware.CORS(jobHandler.Items)))
	mux.Handle("POST /jobs/{id}/xml", middleware.CorrelationID(middleware.CORS(jobHandler.ExportXML)))

	mux.Handle("GET /stats", middleware.CorrelationID(middleware.CORS(statsHandler.GetStats)))

	// Feature: Search
	if vecStore != nil && embedder != nil {
		queryLogger := retrieval.NewQueryLogger(os.Stdout)
		if cfg.QueryLogPath != "" {
			fileLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
			if err != nil {
				slog.Warn("failed to create query logger, falling back to stdout", "error", err)
			} else {
				queryLogger = fileLogger
			}
		}
		var rr retrieval.Reranker
		if rc := reranker.NewClient(reranker.Config{
			Provider: cfg.RerankProvider,
			APIKey:   cfg.RerankAPIKey,
			Model:    cfg.RerankModel,
		}); rc.Enabled() {
			rr = rc
		}
		retrievalService := retrieval.NewService(embedder, vecStore, rr, retrieval.Defaults{
			Alpha: cfg.SearchAlpha,
			TopK:  cfg.SearchTopK,
		}, queryLogger)
		searchHandler := search.NewHandler(retrievalService)
		mux.Handle("GET /collections/{id}/search", middleware.CorrelationID(middleware.CORS(searchHandler.Search)))
	} else {
		slog.Warn("search disabled: no embedder or vector store configured")
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	a := &App{
		Handler:         mux,
		JobService:      jobService,
		Coordinator:     coordinator,
		ProcessConsumer: worker.NewProcessConsumer(ctx, coordinator, 0),
		cfg:             cfg,
	}
	if vecStore != nil && embedder != nil {
		a.IndexConsumer = worker.NewIndexConsumer(embedder, vecStore)
	}
	return a, nil
}

// NewCoordinator wires the extraction, reference and classification stages
// configured in cfg. indexer may be nil.
func NewCoordinator(cfg *config.Config, c completion.Completer, repo pipeline.Repository, pages pipeline.PageSource, indexer pipeline.Indexer) (*pipeline.Coordinator, error) {
	catalog := classify.DefaultCatalog()
	if cfg.CatalogPath != "" {
		loaded, err := classify.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		catalog = loaded
	}

	policy, err := reference.ParsePolicy(cfg.ReferencePolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: REFERENCE_POLICY: %v", config.ErrInvalid, err)
	}

	extractCfg := extract.DefaultConfig()
	extractCfg.MaxRetries = cfg.ExtractMaxRetries
	extractCfg.Concurrency = cfg.ExtractConcurrency

	classifyCfg := classify.DefaultConfig()
	classifyCfg.Catalog = catalog
	classifyCfg.Threshold = cfg.ConfidenceThreshold

	return pipeline.NewCoordinator(pipeline.Deps{
		Repo:       repo,
		Pages:      pages,
		Extractor:  extract.New(c, extractCfg),
		Resolver:   reference.NewResolver(policy),
		Classifier: classify.New(c, classifyCfg),
		Indexer:    indexer,
		WindowSize: cfg.WindowSize,
	}), nil
}

// NewCompleter builds the completion client selected by COMPLETION_PROVIDER.
func NewCompleter(ctx context.Context, cfg *config.Config) (completion.Completer, error) {
	switch cfg.CompletionProvider {
	case config.ProviderOpenRouter:
		if cfg.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("%w: OPENROUTER_API_KEY", config.ErrMissingRequired)
		}
		return openrouter.NewCompleter(openrouter.Config{
			APIKey:      cfg.OpenRouterAPIKey,
			BaseURL:     cfg.OpenRouterBaseURL,
			Model:       cfg.OpenRouterModel,
			Temperature: cfg.Temperature,
		}), nil
	default:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY", config.ErrMissingRequired)
		}
		c, err := gemini.NewCompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, float32(cfg.Temperature))
		if err != nil {
			return nil, fmt.Errorf("gemini completer: %w", err)
		}
		return c, nil
	}
}

func (a *App) Run(ctx context.Context) error {
	port := a.cfg.ServerPort
	if port == 0 {
		port = 8081
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// StartSweeper schedules the stuck job sweep. The returned cron must be
// stopped by the caller.
func (a *App) StartSweeper(ctx context.Context) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(a.cfg.StuckJobSweep, func() {
		a.sweep(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: STUCK_JOB_SWEEP: %v", config.ErrInvalid, err)
	}
	c.Start()
	return c, nil
}

func (a *App) sweep(ctx context.Context) {
	n, err := a.JobService.ResetStuckJobs(ctx, a.cfg.StuckJobTimeout)
	if err != nil {
		slog.ErrorContext(ctx, "stuck job sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.WarnContext(ctx, "failed stuck jobs", "count", n, "timeout", a.cfg.StuckJobTimeout)
	}
}
