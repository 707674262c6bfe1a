// Package service composes the wand components behind one façade. It owns the
// migration gate, wand ownership checks, stats side effects and event
// emission; the components themselves know nothing about each other.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/empirewand/wandcore/internal/binding"
	"github.com/empirewand/wandcore/internal/catalog"
	"github.com/empirewand/wandcore/internal/cooldown"
	"github.com/empirewand/wandcore/internal/domain"
	"github.com/empirewand/wandcore/internal/migration"
	"github.com/empirewand/wandcore/internal/repository"
	"github.com/empirewand/wandcore/internal/stats"
	"github.com/empirewand/wandcore/internal/toggle"
	"github.com/google/uuid"
)

// EventEmitter receives domain events. Emit must not block.
type EventEmitter interface {
	Emit(e domain.Event)
}

type discardEmitter struct{}

func (discardEmitter) Emit(domain.Event) {}

// Options configures a WandService.
type Options struct {
	CatalogPath string
	StatsWindow time.Duration
	Events      EventEmitter
}

// WandService is the single entry point for commands.
type WandService struct {
	catalog   *catalog.Catalog
	bindings  *binding.Store
	cooldowns *cooldown.Manager
	toggles   *toggle.Registry
	stats     *stats.Tracker
	engine    *migration.Engine
	store     repository.StateRepository
	events    EventEmitter
	logger    *slog.Logger

	catalogPath string
	revision    atomic.Uint64
	hydrated    atomic.Bool
	now         func() time.Time
}

// NewWandService wires the components around cat and store.
func NewWandService(cat *catalog.Catalog, store repository.StateRepository, opts Options, logger *slog.Logger) *WandService {
	events := opts.Events
	if events == nil {
		events = discardEmitter{}
	}
	toggles := toggle.NewRegistry()
	svc := &WandService{
		catalog:     cat,
		bindings:    binding.NewStore(cat),
		cooldowns:   cooldown.NewManager(cat, toggles),
		toggles:     toggles,
		stats:       stats.NewTracker(opts.StatsWindow),
		engine:      migration.NewEngine(store, logger),
		store:       store,
		events:      events,
		logger:      logger,
		catalogPath: opts.CatalogPath,
		now:         time.Now,
	}
	svc.engine.OnLoad(svc.loadAfterMigration)
	return svc
}

// Cooldowns exposes the cooldown manager so the reaper can sweep it.
func (s *WandService) Cooldowns() *cooldown.Manager {
	return s.cooldowns
}

// MigrationStatus reports the state of the migration gate.
func (s *WandService) MigrationStatus() migration.Status {
	return s.engine.Status()
}

// Stale reports whether in-memory state may not reflect storage, which is
// the case whenever the migration gate is closed.
func (s *WandService) Stale() bool {
	return s.engine.Status() != migration.StatusCompleted
}

// Revision changes whenever persisted state changes.
func (s *WandService) Revision() uint64 {
	return s.revision.Load()
}

func (s *WandService) touch() {
	s.revision.Add(1)
}

func (s *WandService) nowMs() int64 {
	return s.now().UnixMilli()
}

// Start runs the migration and loads the migrated state before the gate
// opens. A failed migration is returned but leaves the service usable for
// reads; mutations stay rejected until a later Migrate succeeds.
func (s *WandService) Start(ctx context.Context) error {
	report, err := s.engine.Run(ctx)
	s.events.Emit(domain.NewMigrationEvent(report.FromVersion, report.ToVersion, report.Warnings, err))
	return err
}

// Migrate re-runs the migration on demand. When the gate is open the current
// in-memory state is saved first so the run sees it.
func (s *WandService) Migrate(ctx context.Context) (migration.Report, error) {
	if s.engine.Status() == migration.StatusCompleted {
		doc, err := s.Snapshot()
		if err != nil {
			return migration.Report{}, err
		}
		if err := s.store.Save(ctx, doc); err != nil {
			return migration.Report{}, domain.ErrInternal("save state before migration", err)
		}
	}

	report, err := s.engine.Run(ctx)
	s.events.Emit(domain.NewMigrationEvent(report.FromVersion, report.ToVersion, report.Warnings, err))
	if err != nil {
		return report, domain.ErrMigrationFailed(err)
	}
	return report, nil
}

// loadAfterMigration replaces component state with the migrated state when it
// changed or was never loaded. It runs before the engine writes anything, so
// a state the components reject fails the run with storage untouched.
func (s *WandService) loadAfterMigration(_ context.Context, state *domain.State, changed bool) error {
	if !changed && s.hydrated.Load() {
		return nil
	}
	if err := s.hydrate(state); err != nil {
		return err
	}
	s.hydrated.Store(true)
	return nil
}

func (s *WandService) hydrate(state *domain.State) error {
	warnings, err := s.bindings.Restore(state.Wands)
	if err != nil {
		return domain.ErrInternal("restore wands", err)
	}
	warnings = append(warnings, s.toggles.Restore(state.Toggles)...)
	s.stats.Restore(state.Stats)

	for _, w := range warnings {
		s.logger.Warn("state restore divergence", "detail", w)
	}
	s.logger.Info("state loaded",
		"wands", len(state.Wands),
		"players_with_toggles", len(state.Toggles),
		"players_with_stats", len(state.Stats))
	return nil
}

// Snapshot encodes the current state. It refuses while the gate is closed so
// a failed migration's source data is never overwritten.
func (s *WandService) Snapshot() (*domain.Document, error) {
	if err := s.engine.MutationsAllowed(); err != nil {
		return nil, err
	}
	state := domain.NewState()
	state.Wands = s.bindings.Snapshot()
	state.Toggles = s.toggles.Snapshot()
	state.Stats = s.stats.Export()

	payload, err := domain.EncodeState(state)
	if err != nil {
		return nil, domain.ErrInternal("encode state", err)
	}
	return &domain.Document{Version: domain.SchemaVersion, Payload: payload}, nil
}

// ReloadCatalog re-reads the spells file and swaps the catalog.
func (s *WandService) ReloadCatalog() (int, error) {
	defs, err := catalog.LoadFile(s.catalogPath)
	if err != nil {
		return 0, domain.ErrValidation(err.Error())
	}
	if err := s.catalog.Reload(defs); err != nil {
		return 0, domain.ErrValidation(err.Error())
	}
	s.logger.Info("catalog reloaded", "spells", len(defs), "path", s.catalogPath)
	s.events.Emit(domain.NewCatalogReloadedEvent(len(defs)))
	return len(defs), nil
}

// Spells lists the catalog, optionally filtered by a category or type slot
// key such as "category:fire".
func (s *WandService) Spells(filter string) ([]domain.SpellDefinition, error) {
	if filter == "" {
		return s.catalog.All(), nil
	}
	key, kind, err := domain.ParseSlotKey(filter)
	if err != nil {
		return nil, err
	}
	switch kind {
	case domain.SlotCategory:
		c, _ := domain.ParseCategory(key[len("category:"):])
		return s.catalog.ListByCategory(c), nil
	case domain.SlotType:
		t, _ := domain.ParseSpellType(key[len("type:"):])
		return s.catalog.ListByType(t), nil
	}
	return nil, domain.ErrValidation(fmt.Sprintf("filter must be category:<c> or type:<t>, got %q", filter))
}

// ownedWand returns the wand if player owns it. Wands of other players are
// reported as unknown.
func (s *WandService) ownedWand(player domain.PlayerID, wandID uuid.UUID) (domain.Wand, error) {
	w, err := s.bindings.Wand(wandID)
	if err != nil {
		return domain.Wand{}, err
	}
	if w.OwnerID != player {
		return domain.Wand{}, domain.ErrUnknownWand(wandID.String())
	}
	return w, nil
}
