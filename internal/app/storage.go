package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/empirewand/wandcore/internal/infra"
	"github.com/empirewand/wandcore/internal/repository"
)

// Storage is an open state store plus what the health check and shutdown
// need from it.
type Storage struct {
	Repo  repository.StateRepository
	Ping  infra.PingFunc
	Close func()
}

// OpenStorage connects the configured driver and applies schema migrations.
func OpenStorage(ctx context.Context, cfg *infra.Config, logger *slog.Logger) (*Storage, error) {
	switch cfg.StorageDriver {
	case infra.StoragePostgres:
		if err := infra.RunMigrations(cfg.MigrationURL(), infra.StoragePostgres, cfg.MigrationsDir, logger); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		pool, err := infra.NewPostgresPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("connected to postgres")
		return &Storage{
			Repo:  repository.NewPostgresStateRepository(pool),
			Ping:  pool.Ping,
			Close: pool.Close,
		}, nil

	case infra.StorageSQLite:
		if err := infra.RunMigrations(cfg.MigrationURL(), infra.StorageSQLite, cfg.MigrationsDir, logger); err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		db, err := infra.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite", "path", cfg.SQLitePath)
		return &Storage{
			Repo:  repository.NewSQLiteStateRepository(db),
			Ping:  db.PingContext,
			Close: func() { db.Close() },
		}, nil

	case infra.StorageMemory:
		logger.Warn("using in-memory storage; state is lost on exit")
		return &Storage{
			Repo:  repository.NewMemoryStateRepository(nil),
			Close: func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
