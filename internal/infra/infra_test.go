package infra

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/empirewand/wandcore/internal/domain"
	"github.com/empirewand/wandcore/internal/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// --- Config ---

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StorageSQLite, cfg.StorageDriver)
	assert.Equal(t, 30*time.Second, cfg.SaveInterval)
	assert.Equal(t, time.Hour, cfg.StatsWindow)
	assert.Equal(t, "wand.intents", cfg.KafkaIntentTopic)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/wand")
	t.Setenv("SAVE_INTERVAL", "5s")
	t.Setenv("INTENT_RATE_LIMIT", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "postgres://u:p@db:5432/wand", cfg.DSN())
	assert.Equal(t, cfg.DSN(), cfg.MigrationURL())
	assert.Equal(t, 5*time.Second, cfg.SaveInterval)
	assert.Equal(t, 3, cfg.IntentRateLimit)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestConfig_DSNFromParts(t *testing.T) {
	cfg := &Config{PGUser: "u", PGPassword: "p", PGHost: "h", PGPort: 5433, PGDatabase: "d"}
	assert.Equal(t, "postgres://u:p@h:5433/d?sslmode=disable", cfg.DSN())
}

func TestConfig_MigrationURL(t *testing.T) {
	cfg := &Config{StorageDriver: StorageSQLite, SQLitePath: "/data/wand.db"}
	assert.Equal(t, "sqlite3:///data/wand.db", cfg.MigrationURL())

	cfg.StorageDriver = StorageMemory
	assert.Empty(t, cfg.MigrationURL())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StorageDriver:         StorageMemory,
			SaveInterval:          time.Second,
			CooldownSweepInterval: time.Second,
			StatsWindow:           time.Hour,
			IntentRateLimit:       1,
			IntentRateWindow:      time.Second,
			LogLevel:              "info",
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.StorageDriver = "redis" }},
		{"sqlite without path", func(c *Config) { c.StorageDriver = StorageSQLite }},
		{"zero save interval", func(c *Config) { c.SaveInterval = 0 }},
		{"zero sweep interval", func(c *Config) { c.CooldownSweepInterval = 0 }},
		{"tiny stats window", func(c *Config) { c.StatsWindow = time.Second }},
		{"rate limit without window", func(c *Config) { c.IntentRateWindow = 0 }},
		{"kafka without brokers", func(c *Config) { c.KafkaEnabled = true }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

// --- Event publisher ---

type recordingProducer struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

type publishedMessage struct {
	topic string
	key   string
	value []byte
}

func (r *recordingProducer) Publish(_ context.Context, topic string, key, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, publishedMessage{topic: topic, key: string(key), value: value})
	return nil
}

func (r *recordingProducer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func TestEventPublisher_FlushesOnTick(t *testing.T) {
	producer := &recordingProducer{}
	p := NewEventPublisher(producer, "wand.events", testLogger)
	p.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	p.Emit(domain.NewCooldownClearedEvent("steve", "comet"))
	p.Emit(domain.NewToggleChangedEvent("alex", "sounds", false))

	require.Eventually(t, func() bool { return producer.count() == 2 }, time.Second, 5*time.Millisecond)

	producer.mu.Lock()
	defer producer.mu.Unlock()
	first := producer.messages[0]
	assert.Equal(t, "wand.events", first.topic)
	assert.Equal(t, "steve", first.key)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(first.value, &envelope))
	assert.Equal(t, string(domain.EventCooldownCleared), envelope["event_type"])
}

func TestEventPublisher_DrainsOnShutdown(t *testing.T) {
	producer := &recordingProducer{}
	p := NewEventPublisher(producer, "wand.events", testLogger)
	p.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	for i := 0; i < 5; i++ {
		p.Emit(domain.NewCatalogReloadedEvent(i))
	}
	cancel()
	<-p.Done()

	assert.Equal(t, 5, producer.count())
}

func TestEventPublisher_DropsWhenFull(t *testing.T) {
	p := NewEventPublisher(&recordingProducer{}, "wand.events", testLogger)
	p.events = make(chan domain.Event, 1)

	p.Emit(domain.NewCatalogReloadedEvent(1))
	p.Emit(domain.NewCatalogReloadedEvent(2))

	assert.Len(t, p.events, 1)
}

func TestEventPublisher_PublishErrorDoesNotStop(t *testing.T) {
	producer := &recordingProducer{err: errors.New("broker down")}
	p := NewEventPublisher(producer, "wand.events", testLogger)

	p.Emit(domain.NewCatalogReloadedEvent(1))
	p.flush(context.Background(), 10)
	assert.Empty(t, p.events)
}

// --- Save worker ---

type fakeSnapshotter struct {
	rev atomic.Uint64
	err error
}

func (f *fakeSnapshotter) Snapshot() (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{Version: domain.SchemaVersion, Payload: []byte(`{}`)}, nil
}

func (f *fakeSnapshotter) Revision() uint64 { return f.rev.Load() }

type countingSaver struct {
	saves atomic.Int32
	err   error
}

func (c *countingSaver) Save(_ context.Context, _ *domain.Document) error {
	if c.err != nil {
		return c.err
	}
	c.saves.Add(1)
	return nil
}

func TestSaveWorker_SavesOnlyWhenChanged(t *testing.T) {
	src := &fakeSnapshotter{}
	store := &countingSaver{}
	w := NewSaveWorker(src, store, time.Hour, testLogger)
	ctx := context.Background()

	require.NoError(t, w.SaveIfChanged(ctx))
	assert.Equal(t, int32(0), store.saves.Load())

	src.rev.Store(1)
	require.NoError(t, w.SaveIfChanged(ctx))
	require.NoError(t, w.SaveIfChanged(ctx))
	assert.Equal(t, int32(1), store.saves.Load())

	require.NoError(t, w.SaveNow(ctx))
	assert.Equal(t, int32(2), store.saves.Load())
}

func TestSaveWorker_OpensCircuitOnRepeatedFailures(t *testing.T) {
	src := &fakeSnapshotter{}
	store := &countingSaver{err: errors.New("db down")}
	w := NewSaveWorker(src, store, time.Hour, testLogger)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		src.rev.Store(uint64(i))
		assert.Error(t, w.SaveIfChanged(ctx))
	}
	assert.Equal(t, guard.CircuitOpen, w.breaker.State(saveCircuitKey))

	src.rev.Store(10)
	assert.NoError(t, w.SaveIfChanged(ctx), "open circuit skips the save")
}

func TestSaveWorker_SnapshotErrorSkipsWrite(t *testing.T) {
	src := &fakeSnapshotter{err: domain.ErrMigrationFailed(nil)}
	store := &countingSaver{}
	w := NewSaveWorker(src, store, time.Hour, testLogger)
	src.rev.Store(1)

	err := w.SaveIfChanged(context.Background())
	assert.True(t, domain.HasCode(err, domain.CodeMigrationFailed))
	assert.Equal(t, int32(0), store.saves.Load())
}

func TestSaveWorker_FinalSaveOnShutdown(t *testing.T) {
	src := &fakeSnapshotter{}
	store := &countingSaver{}
	w := NewSaveWorker(src, store, time.Hour, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := w.Start(ctx)
	cancel()
	<-done

	assert.Equal(t, int32(1), store.saves.Load())
}

// --- Kafka and health ---

func TestKafka_DisabledIsNoop(t *testing.T) {
	producer := NewKafkaProducer("localhost:9092", false, testLogger)
	assert.False(t, producer.Enabled())
	assert.NoError(t, producer.Publish(context.Background(), "wand.events", []byte("k"), []byte("v")))
	assert.NoError(t, producer.Close())

	consumer := NewKafkaConsumer("", "wand.intents", "wandd", true, testLogger)
	assert.False(t, consumer.Enabled())
	assert.NoError(t, consumer.CommitMessages(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := consumer.FetchMessage(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoError(t, consumer.Close())
}

func TestHealthCheck(t *testing.T) {
	assert.NoError(t, HealthCheck(context.Background(), nil))

	down := errors.New("connection refused")
	err := HealthCheck(context.Background(), func(context.Context) error { return down })
	assert.ErrorIs(t, err, down)

	err = HealthCheck(context.Background(), func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	})
	assert.NoError(t, err)
}
