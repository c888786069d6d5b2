// Package main is the entrypoint for the PlanCheck API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/plancheckhq/plancheck/internal/ai"
	"github.com/plancheckhq/plancheck/internal/api"
	"github.com/plancheckhq/plancheck/internal/api/handler"
	mw "github.com/plancheckhq/plancheck/internal/api/middleware"
	"github.com/plancheckhq/plancheck/internal/blob"
	"github.com/plancheckhq/plancheck/internal/config"
	"github.com/plancheckhq/plancheck/internal/jobstore"
	"github.com/plancheckhq/plancheck/internal/pipeline"
	"github.com/plancheckhq/plancheck/internal/store"
)

const (
	version         = "0.3.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create job store. A missing REDIS_URL degrades instead of failing:
	// status reads still work, enqueue attempts surface loud errors.
	jobs, err := newJobStore(ctx, cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create job store: %w", err)
	}
	defer jobs.Close()

	// 5. Create AI analyzer
	analyzer, err := ai.NewAnalyzer(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI analyzer: %w", err)
	}
	slog.Info("AI analyzer initialized", "provider", analyzer.Name())

	// 6. Create stores and pipeline
	pgStore := store.NewPostgresStore(pool)
	blobs := blob.NewHTTPClient(cfg.Storage.BaseURL, cfg.Storage.APIKey, cfg.Storage.Timeout)

	processor := pipeline.NewProcessor(jobs, pgStore, analyzer, cfg.AI.InferenceTimeout)
	coordinator := pipeline.NewCoordinator(jobs, pgStore, cfg.Queue.MaxAttempts)
	canceller := pipeline.NewCanceller(jobs, pgStore)
	inspector := pipeline.NewInspector(jobs, cfg.Queue.StuckThreshold)

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(jobs, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: handler.NewHealthHandler(version, pgStore, jobs),

		AnalyzeHandler:      handler.NewAnalyzeHandler(coordinator),
		ProcessQueueHandler: handler.NewProcessQueueHandler(processor, cfg.Queue.JobsPerTick),
		ProgressHandler:     handler.NewProgressHandler(coordinator),

		CreateCheckHandler: handler.NewCreateCheckHandler(pgStore),
		GetCheckHandler:    handler.NewGetCheckHandler(pgStore),
		ListChecksHandler:  handler.NewListChecksHandler(pgStore),
		ListRunsHandler:    handler.NewListRunsHandler(pgStore),

		SetOverrideHandler:   handler.NewSetOverrideHandler(canceller),
		ClearOverrideHandler: handler.NewClearOverrideHandler(canceller),

		CreateScreenshotHandler: handler.NewCreateScreenshotHandler(pgStore, blobs),
		ListScreenshotsHandler:  handler.NewListScreenshotsHandler(pgStore),
		DeleteScreenshotHandler: handler.NewDeleteScreenshotHandler(pgStore, blobs),

		UpsertCalibrationHandler:     handler.NewUpsertCalibrationHandler(pgStore),
		UpsertSectionOverrideHandler: handler.NewUpsertSectionOverrideHandler(pgStore),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),

		DebugQueueHandler: handler.NewDebugQueueHandler(inspector),
		DebugJobsHandler:  handler.NewDebugJobsHandler(inspector),
		DebugStuckHandler: handler.NewDebugStuckHandler(inspector),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func newJobStore(ctx context.Context, redisURL string) (*jobstore.RedisStore, error) {
	if redisURL == "" {
		slog.Warn("REDIS_URL not set, job store running unconfigured")
		return jobstore.NewUnconfiguredStore(), nil
	}

	jobs, err := jobstore.NewRedisStore(redisURL)
	if err != nil {
		return nil, err
	}
	if err := jobs.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")
	return jobs, nil
}
