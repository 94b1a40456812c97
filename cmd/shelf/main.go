package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelf/internal/catalog"
	"github.com/kailas-cloud/shelf/internal/config"
	"github.com/kailas-cloud/shelf/internal/domain/product"
	"github.com/kailas-cloud/shelf/internal/fuzzy"
	logpkg "github.com/kailas-cloud/shelf/internal/logger"
	"github.com/kailas-cloud/shelf/internal/metrics"
	chiTransport "github.com/kailas-cloud/shelf/internal/transport/chi"
	healthuc "github.com/kailas-cloud/shelf/internal/usecase/health"
	"github.com/kailas-cloud/shelf/internal/usecase/ingest"
	"github.com/kailas-cloud/shelf/internal/usecase/orchestrator"
	searchuc "github.com/kailas-cloud/shelf/internal/usecase/search"
	sessionuc "github.com/kailas-cloud/shelf/internal/usecase/session"
	"github.com/kailas-cloud/shelf/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting shelf search server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("catalog_path", cfg.Catalog.Path),
		zap.String("catalog_url", cfg.Catalog.URL),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterSearchMetrics()
	metrics.RegisterHTTPMetrics()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	source := buildSource(cfg.Catalog, logger)

	// Search context: fuzzy index + query pipeline behind the orchestrator
	w := cfg.Search.Weights
	indexOpts := fuzzy.Options{
		Weights: fuzzy.Weights{
			Title:       w.Title,
			Description: w.Description,
			Tags:        w.Tags,
			Vendor:      w.Vendor,
			ProductType: w.ProductType,
		},
		MaxEdits: *cfg.Search.MaxEdits,
		KeepHTML: cfg.Search.KeepHTML,
	}
	pipeline := searchuc.New(logger).WithCollation(cfg.Search.CollationTag())
	orch := orchestrator.New(orchestrator.FuzzyBuilder(indexOpts), pipeline, logger).
		WithWorkers(cfg.Search.Workers)

	// Ingestion context
	worker := ingest.NewWorker(ingest.New(logger).WithComma(cfg.Catalog.Comma()))

	// Presentation side
	session := sessionuc.New(orch, worker, sessionuc.Config{
		Debounce:        cfg.Search.Debounce(),
		SuggestionCount: cfg.Search.SuggestionCount,
	}, logger)
	session.OnReady(func(c product.Catalog) {
		b := product.PriceBounds(c)
		logger.Info("Search ready",
			zap.Int("products", c.Len()),
			zap.Float64("price_min", b.Min),
			zap.Float64("price_max", b.Max),
		)
	})
	session.Start(ctx)
	defer session.Close()

	go func() {
		loadCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Catalog.FetchTimeoutSec)*time.Second)
		defer cancel()
		if err := session.Load(loadCtx, source); err != nil {
			logger.Error("Initial catalog load failed; POST /catalog/reload to retry", zap.Error(err))
		}
	}()

	healthSvc := healthuc.New(session)
	server := chiTransport.NewServer(session, healthSvc, source, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEvent(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildSource picks the catalog source from config: a local file or a URL.
func buildSource(cfg config.CatalogConfig, logger *zap.Logger) catalog.Source {
	if cfg.URL != "" {
		return catalog.NewHTTPSource(&catalog.HTTPConfig{
			URL:     cfg.URL,
			Timeout: time.Duration(cfg.FetchTimeoutSec) * time.Second,
			Logger:  logger,
		})
	}
	return catalog.NewFileSource(cfg.Path)
}
