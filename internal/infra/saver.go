package infra

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/empirewand/wandcore/internal/domain"
	"github.com/empirewand/wandcore/internal/guard"
)

const saveCircuitKey = "state"

// Snapshotter produces the document to persist. Revision changes whenever
// persisted state changes.
type Snapshotter interface {
	Snapshot() (*domain.Document, error)
	Revision() uint64
}

// DocumentSaver persists a document.
type DocumentSaver interface {
	Save(ctx context.Context, doc *domain.Document) error
}

// SaveWorker periodically writes the in-memory state to storage. Repeated
// storage failures open a circuit so a dead database is not hammered every
// tick.
type SaveWorker struct {
	source   Snapshotter
	store    DocumentSaver
	breaker  *guard.CircuitBreaker
	logger   *slog.Logger
	interval time.Duration

	mu    sync.Mutex // serializes saves
	saved atomic.Uint64
}

// NewSaveWorker creates a save worker.
func NewSaveWorker(source Snapshotter, store DocumentSaver, interval time.Duration, logger *slog.Logger) *SaveWorker {
	return &SaveWorker{
		source:   source,
		store:    store,
		breaker:  guard.NewCircuitBreaker(3, time.Minute),
		logger:   logger,
		interval: interval,
	}
}

// Start saves on every tick until ctx is cancelled, then saves once more.
// The returned channel is closed after the final save.
func (w *SaveWorker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	w.logger.Info("save worker started", "interval", w.interval)

	go func() {
		defer close(done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				finalCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := w.SaveNow(finalCtx); err != nil {
					w.logger.Error("final save failed", "error", err)
				}
				cancel()
				w.logger.Info("save worker stopped")
				return
			case <-ticker.C:
				if err := w.SaveIfChanged(ctx); err != nil {
					w.logger.Error("periodic save failed", "error", err)
				}
			}
		}
	}()
	return done
}

// SaveIfChanged saves when the revision moved since the last successful save
// and the circuit allows it.
func (w *SaveWorker) SaveIfChanged(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rev := w.source.Revision()
	if rev == w.saved.Load() {
		return nil
	}
	doc, err := w.source.Snapshot()
	if err != nil {
		return err
	}
	if res := w.breaker.Check(ctx, saveCircuitKey); !res.Allowed {
		w.logger.Warn("save skipped", "reason", res.Reason)
		return nil
	}
	return w.write(ctx, rev, doc)
}

// SaveNow saves regardless of revision or circuit state.
func (w *SaveWorker) SaveNow(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rev := w.source.Revision()
	doc, err := w.source.Snapshot()
	if err != nil {
		return err
	}
	return w.write(ctx, rev, doc)
}

func (w *SaveWorker) write(ctx context.Context, rev uint64, doc *domain.Document) error {
	if err := w.store.Save(ctx, doc); err != nil {
		w.breaker.RecordFailure(saveCircuitKey)
		return err
	}
	w.breaker.RecordSuccess(saveCircuitKey)
	w.saved.Store(rev)
	w.logger.Debug("state saved", "revision", rev, "bytes", len(doc.Payload))
	return nil
}
