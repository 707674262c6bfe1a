// Package migration upgrades persisted state documents to the current schema
// version and gates mutations until that has happened.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/empirewand/wandcore/internal/domain"
)

// Store loads and saves the persisted document. Load returns nil and no
// error when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) (*domain.Document, error)
	Save(ctx context.Context, doc *domain.Document) error
}

// Status is the lifecycle of a migration run.
type Status int

const (
	StatusNotStarted Status = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Report describes what a run did.
type Report struct {
	FromVersion int      `json:"from_version"`
	ToVersion   int      `json:"to_version"`
	Applied     []string `json:"applied"`
	Warnings    []string `json:"warnings"`
	Wrote       bool     `json:"wrote"`
}

// Engine runs the upgrade chain against a Store.
type Engine struct {
	store  Store
	steps  []Step
	logger *slog.Logger

	run  sync.Mutex // serializes Run
	load func(ctx context.Context, s *domain.State, changed bool) error

	// gate is held exclusively for the whole of Run and shared by every
	// admitted mutation.
	gate sync.RWMutex

	mu     sync.RWMutex
	status Status
	err    error
	report Report
}

// NewEngine creates an engine using the default upgrade chain.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	return NewEngineWithSteps(store, Steps, logger)
}

// NewEngineWithSteps creates an engine with a custom upgrade chain.
func NewEngineWithSteps(store Store, steps []Step, logger *slog.Logger) *Engine {
	return &Engine{store: store, steps: steps, logger: logger}
}

// OnLoad registers fn to receive the validated current-version state of every
// run before anything is written and before the gate opens. changed is false
// when the stored document was already current. An error from fn fails the
// run and leaves the stored document untouched.
func (e *Engine) OnLoad(fn func(ctx context.Context, s *domain.State, changed bool) error) {
	e.run.Lock()
	defer e.run.Unlock()
	e.load = fn
}

// Status returns the current state of the engine.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// LastReport returns the report of the most recent successful run.
func (e *Engine) LastReport() Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.report
}

// Err returns the failure of the most recent run, if it failed.
func (e *Engine) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// MutationsAllowed returns nil once a run has completed, and the error to
// surface to callers otherwise.
func (e *Engine) MutationsAllowed() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch e.status {
	case StatusCompleted:
		return nil
	case StatusFailed:
		return domain.ErrMigrationFailed(e.err)
	default:
		return domain.ErrMigrationInProgress()
	}
}

func (e *Engine) setStatus(s Status, err error, r *Report) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = s
	e.err = err
	if r != nil {
		e.report = *r
	}
}

// Admit holds the gate open for one mutation. The caller must call release
// when the mutation is done. A mutation is never admitted while a run is in
// progress.
func (e *Engine) Admit() (func(), error) {
	if !e.gate.TryRLock() {
		return nil, domain.ErrMigrationInProgress()
	}
	if err := e.MutationsAllowed(); err != nil {
		e.gate.RUnlock()
		return nil, err
	}
	return e.gate.RUnlock, nil
}

// Run brings the stored document to domain.SchemaVersion. A document already
// at the current version is validated and left unwritten. On failure the
// stored document is untouched and the engine stays Failed until a later run
// succeeds.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	e.run.Lock()
	defer e.run.Unlock()
	e.gate.Lock()
	defer e.gate.Unlock()

	e.setStatus(StatusInProgress, nil, nil)
	report, err := e.migrate(ctx)
	if err != nil {
		e.logger.Error("state migration failed", "from_version", report.FromVersion, "error", err)
		e.setStatus(StatusFailed, err, nil)
		return report, err
	}

	e.logger.Info("state migration completed",
		"from_version", report.FromVersion,
		"to_version", report.ToVersion,
		"applied", len(report.Applied),
		"warnings", len(report.Warnings),
		"wrote", report.Wrote)
	for _, w := range report.Warnings {
		e.logger.Warn("state migration divergence", "detail", w)
	}
	e.setStatus(StatusCompleted, nil, &report)
	return report, nil
}

func (e *Engine) migrate(ctx context.Context) (Report, error) {
	report := Report{ToVersion: domain.SchemaVersion, Applied: []string{}, Warnings: []string{}}

	doc, err := e.store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load state: %w", err)
	}
	if doc == nil {
		fresh := domain.NewState()
		payload, err := domain.EncodeState(fresh)
		if err != nil {
			return report, err
		}
		report.FromVersion = domain.SchemaVersion
		if err := e.loaded(ctx, fresh, true); err != nil {
			return report, err
		}
		if err := e.store.Save(ctx, &domain.Document{Version: domain.SchemaVersion, Payload: payload}); err != nil {
			return report, fmt.Errorf("save state: %w", err)
		}
		report.Wrote = true
		return report, nil
	}

	report.FromVersion = doc.Version
	if doc.Version > domain.SchemaVersion {
		return report, fmt.Errorf("stored version %d is newer than supported version %d", doc.Version, domain.SchemaVersion)
	}
	if doc.Version < 1 {
		return report, fmt.Errorf("stored version %d is not a valid schema version", doc.Version)
	}

	payload := doc.Payload
	version := doc.Version
	for _, step := range e.steps {
		if step.From != version {
			continue
		}
		next, warnings, err := step.Apply(payload)
		if err != nil {
			return report, fmt.Errorf("upgrade v%d to v%d: %w", step.From, step.To, err)
		}
		payload = next
		version = step.To
		report.Applied = append(report.Applied, fmt.Sprintf("v%d->v%d", step.From, step.To))
		report.Warnings = append(report.Warnings, warnings...)
	}
	if version != domain.SchemaVersion {
		return report, fmt.Errorf("no upgrade path from version %d", version)
	}

	// Current documents are validated too; a corrupt one must not unlock
	// mutations.
	state, err := domain.DecodeState(payload)
	if err != nil {
		return report, err
	}
	changed := len(report.Applied) > 0
	if err := e.loaded(ctx, state, changed); err != nil {
		return report, err
	}
	if !changed {
		return report, nil
	}

	if err := e.store.Save(ctx, &domain.Document{Version: version, Payload: payload}); err != nil {
		return report, fmt.Errorf("save state: %w", err)
	}
	report.Wrote = true
	return report, nil
}

func (e *Engine) loaded(ctx context.Context, s *domain.State, changed bool) error {
	if e.load == nil {
		return nil
	}
	return e.load(ctx, s, changed)
}
