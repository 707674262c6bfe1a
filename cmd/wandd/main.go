package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/empirewand/wandcore/internal/app"
	"github.com/empirewand/wandcore/internal/catalog"
	"github.com/empirewand/wandcore/internal/command"
	"github.com/empirewand/wandcore/internal/cooldown"
	"github.com/empirewand/wandcore/internal/guard"
	"github.com/empirewand/wandcore/internal/infra"
	"github.com/empirewand/wandcore/internal/policy"
	"github.com/empirewand/wandcore/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	level, _ := cfg.SlogLevel()
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Storage
	store, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// Catalog and permissions
	defs, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	cat, err := catalog.New(defs)
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	grants, err := policy.LoadGrants(cfg.PermissionsPath)
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	logger.Info("catalog loaded", "spells", cat.Len(), "categories", len(cat.Categories()))

	// Kafka
	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()
	events := infra.NewEventPublisher(producer, cfg.KafkaEventTopic, logger)

	// Service. Background workers get their own context so they can drain
	// after the HTTP server and consumer have stopped.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	events.Start(workerCtx)

	svc := service.NewWandService(cat, store.Repo, service.Options{
		CatalogPath: cfg.CatalogPath,
		StatsWindow: cfg.StatsWindow,
		Events:      events,
	}, logger)
	if err := svc.Start(ctx); err != nil {
		// Reads keep working with stale data; mutations stay rejected until
		// an admin migrate succeeds.
		logger.Error("state migration failed, serving read-only", "error", err)
	}

	cooldown.NewReaper(svc.Cooldowns(), cfg.CooldownSweepInterval, logger).Start(workerCtx)
	saved := infra.NewSaveWorker(svc, store.Repo, cfg.SaveInterval, logger).Start(workerCtx)

	// Commands
	limiter := guard.NewRateLimiter(cfg.IntentRateLimit, cfg.IntentRateWindow)
	dispatcher := command.NewDispatcher(svc, policy.NewChecker(grants), logger,
		command.WithRateLimit(limiter),
		command.WithIdempotency(guard.NewIdempotencyGuard(cfg.IdempotencyCapacity)),
	)
	go pruneLoop(ctx, limiter)

	intents := infra.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaIntentTopic, cfg.KafkaGroupID, cfg.KafkaEnabled, logger)
	defer intents.Close()
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if !intents.Enabled() {
			return
		}
		command.NewConsumer(intents, dispatcher, producer, cfg.KafkaResultTopic, logger).Run(ctx)
	}()

	// Start server
	r := app.NewRouter(app.RouterDeps{
		Service:     svc,
		Dispatcher:  dispatcher,
		Ping:        store.Ping,
		CORSOrigins: cfg.CORSAllowedOrigins,
		Logger:      logger,
	})
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("wandd starting", "addr", addr, "storage", cfg.StorageDriver, "kafka", cfg.KafkaEnabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		serveErr = fmt.Errorf("server error: %w", err)
		stop()
	}

	// Shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	<-consumerDone

	// Final save, then flush queued events.
	stopWorkers()
	<-saved
	select {
	case <-events.Done():
	case <-shutdownCtx.Done():
		logger.Warn("event flush timed out")
	}

	if serveErr != nil {
		return serveErr
	}
	logger.Info("server stopped gracefully")
	return nil
}

func pruneLoop(ctx context.Context, limiter *guard.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}
