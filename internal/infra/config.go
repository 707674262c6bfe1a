package infra

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Storage
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	DatabaseURL   string `env:"DATABASE_URL"`
	PGHost        string `env:"PGHOST" envDefault:"localhost"`
	PGPort        int    `env:"PGPORT" envDefault:"5432"`
	PGUser        string `env:"PGUSER" envDefault:"wand"`
	PGPassword    string `env:"PGPASSWORD" envDefault:"wand"`
	PGDatabase    string `env:"PGDATABASE" envDefault:"wand"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"wand.db"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`

	// Server
	APIPort            int    `env:"API_PORT" envDefault:"3100"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Kafka
	KafkaBrokers     string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled     bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaIntentTopic string `env:"KAFKA_INTENT_TOPIC" envDefault:"wand.intents"`
	KafkaResultTopic string `env:"KAFKA_RESULT_TOPIC" envDefault:"wand.results"`
	KafkaEventTopic  string `env:"KAFKA_EVENT_TOPIC" envDefault:"wand.events"`
	KafkaGroupID     string `env:"KAFKA_GROUP_ID" envDefault:"wandd"`

	// Domain data
	CatalogPath     string `env:"CATALOG_PATH"`
	PermissionsPath string `env:"PERMISSIONS_PATH"`

	// Runtime
	SaveInterval          time.Duration `env:"SAVE_INTERVAL" envDefault:"30s"`
	CooldownSweepInterval time.Duration `env:"COOLDOWN_SWEEP_INTERVAL" envDefault:"30s"`
	StatsWindow           time.Duration `env:"STATS_WINDOW" envDefault:"1h"`
	IntentRateLimit       int           `env:"INTENT_RATE_LIMIT" envDefault:"20"`
	IntentRateWindow      time.Duration `env:"INTENT_RATE_WINDOW" envDefault:"1s"`
	IdempotencyCapacity   int           `env:"IDEMPOTENCY_CAPACITY" envDefault:"10000"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configuration the server cannot start with.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StoragePostgres, StorageMemory:
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORAGE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER %q is not one of postgres, sqlite, memory", c.StorageDriver)
	}
	if c.SaveInterval <= 0 {
		return fmt.Errorf("SAVE_INTERVAL must be positive, got %s", c.SaveInterval)
	}
	if c.CooldownSweepInterval <= 0 {
		return fmt.Errorf("COOLDOWN_SWEEP_INTERVAL must be positive, got %s", c.CooldownSweepInterval)
	}
	if c.StatsWindow < time.Minute {
		return fmt.Errorf("STATS_WINDOW must be at least 1m, got %s", c.StatsWindow)
	}
	if c.IntentRateLimit > 0 && c.IntentRateWindow <= 0 {
		return fmt.Errorf("INTENT_RATE_WINDOW must be positive when INTENT_RATE_LIMIT is set")
	}
	if c.KafkaEnabled && c.KafkaBrokers == "" {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// MigrationURL returns the golang-migrate database URL for the configured
// storage driver, or "" for in-memory storage.
func (c *Config) MigrationURL() string {
	switch c.StorageDriver {
	case StoragePostgres:
		return c.DSN()
	case StorageSQLite:
		return "sqlite3://" + c.SQLitePath
	}
	return ""
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}
