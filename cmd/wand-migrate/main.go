package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/empirewand/wandcore/internal/app"
	"github.com/empirewand/wandcore/internal/infra"
	"github.com/empirewand/wandcore/internal/migration"
	"github.com/empirewand/wandcore/internal/repository"
)

// wand-migrate upgrades the persisted wand state offline, with the server
// stopped. It uses the same environment configuration as wandd.
func main() {
	dryRun := flag.Bool("dry-run", false, "report what would change without writing")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger, *dryRun); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, dryRun bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	store, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	target := store.Repo
	if dryRun {
		doc, err := store.Repo.Load(ctx)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		target = repository.NewMemoryStateRepository(doc)
	}

	report, err := migration.NewEngine(target, logger).Run(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		migration.Report
		DryRun bool `json:"dry_run"`
	}{report, dryRun})
}
