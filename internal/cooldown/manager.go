// Package cooldown tracks when each player may next cast each spell.
package cooldown

import (
	"sort"
	"sync"

	"github.com/empirewand/wandcore/internal/domain"
	"github.com/google/uuid"
)

// SpellResolver looks up catalog definitions.
type SpellResolver interface {
	Resolve(id string) (domain.SpellDefinition, error)
}

// NotifySetter persists the cooldown_notify preference.
type NotifySetter interface {
	Set(player domain.PlayerID, key string, value bool) (bool, error)
}

// Outcome is the result of a consume attempt. A spell on cooldown is a
// normal outcome, not an error.
type Outcome struct {
	Ready       bool  `json:"ready"`
	RemainingMs int64 `json:"remaining_ms"`
	ReadyAtMs   int64 `json:"ready_at_ms"`
}

// Entry is an active cooldown window.
type Entry struct {
	SpellID     string `json:"spell_id"`
	ReadyAtMs   int64  `json:"ready_at_ms"`
	RemainingMs int64  `json:"remaining_ms"`
}

// Metrics is a point-in-time count of what the manager holds.
type Metrics struct {
	Players  int `json:"players"`
	Windows  int `json:"windows"`
	Bypassed int `json:"bypassed"`
}

// playerWindows holds one player's running windows. A retired value has been
// removed from Manager.players and must not be written to.
type playerWindows struct {
	mu      sync.Mutex
	spells  map[string]int64 // spell id -> readyAtMs
	retired bool
}

type bypassKey struct {
	player domain.PlayerID
	wand   uuid.UUID
}

// Manager holds in-memory cooldown windows keyed by (player, spell).
// An absent entry means the spell is ready.
type Manager struct {
	spells  SpellResolver
	notify  NotifySetter
	players sync.Map // domain.PlayerID -> *playerWindows
	bypass  sync.Map // bypassKey -> struct{}
}

// NewManager creates a cooldown manager.
func NewManager(spells SpellResolver, notify NotifySetter) *Manager {
	return &Manager{spells: spells, notify: notify}
}

// acquire returns the player's windows locked, creating them if needed.
func (m *Manager) acquire(player domain.PlayerID) *playerWindows {
	for {
		v, _ := m.players.LoadOrStore(player, &playerWindows{spells: make(map[string]int64)})
		pw := v.(*playerWindows)
		pw.mu.Lock()
		if !pw.retired {
			return pw
		}
		pw.mu.Unlock()
	}
}

// lookup returns the player's windows locked, or nil when there are none.
func (m *Manager) lookup(player domain.PlayerID) *playerWindows {
	v, ok := m.players.Load(player)
	if !ok {
		return nil
	}
	pw := v.(*playerWindows)
	pw.mu.Lock()
	if pw.retired {
		pw.mu.Unlock()
		return nil
	}
	return pw
}

// TryConsume starts the cooldown window for spell if it is ready. When it is
// not, the remaining time is reported and nothing changes. A wand with a
// bypass for player is always ready and starts no window.
func (m *Manager) TryConsume(player domain.PlayerID, wandID uuid.UUID, spellID string, nowMs int64) (Outcome, error) {
	def, err := m.spells.Resolve(spellID)
	if err != nil {
		return Outcome{}, err
	}
	if m.Bypassed(player, wandID) {
		return Outcome{Ready: true, ReadyAtMs: nowMs}, nil
	}

	pw := m.acquire(player)
	defer pw.mu.Unlock()

	if readyAt, ok := pw.spells[def.ID]; ok && readyAt > nowMs {
		return Outcome{RemainingMs: readyAt - nowMs, ReadyAtMs: readyAt}, nil
	}

	readyAt := nowMs + def.BaseCooldownMs
	if def.BaseCooldownMs > 0 {
		pw.spells[def.ID] = readyAt
	} else {
		delete(pw.spells, def.ID)
	}
	return Outcome{Ready: true, ReadyAtMs: readyAt}, nil
}

// Status returns the milliseconds left before spell is ready, or zero.
func (m *Manager) Status(player domain.PlayerID, spellID string, nowMs int64) (int64, error) {
	def, err := m.spells.Resolve(spellID)
	if err != nil {
		return 0, err
	}
	pw := m.lookup(player)
	if pw == nil {
		return 0, nil
	}
	readyAt, ok := pw.spells[def.ID]
	pw.mu.Unlock()
	if ok && readyAt > nowMs {
		return readyAt - nowMs, nil
	}
	return 0, nil
}

// Active lists the player's running cooldowns sorted by spell id.
func (m *Manager) Active(player domain.PlayerID, nowMs int64) []Entry {
	pw := m.lookup(player)
	if pw == nil {
		return nil
	}
	defer pw.mu.Unlock()

	var out []Entry
	for id, readyAt := range pw.spells {
		if readyAt > nowMs {
			out = append(out, Entry{SpellID: id, ReadyAtMs: readyAt, RemainingMs: readyAt - nowMs})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpellID < out[j].SpellID })
	return out
}

// Clear removes the cooldown for one spell. Clearing a ready spell is a no-op.
func (m *Manager) Clear(player domain.PlayerID, spellID string) error {
	def, err := m.spells.Resolve(spellID)
	if err != nil {
		return err
	}
	if pw := m.lookup(player); pw != nil {
		delete(pw.spells, def.ID)
		pw.mu.Unlock()
	}
	return nil
}

// ClearAll removes every cooldown of player and returns how many were held.
func (m *Manager) ClearAll(player domain.PlayerID) int {
	pw := m.lookup(player)
	if pw == nil {
		return 0
	}
	defer pw.mu.Unlock()
	n := len(pw.spells)
	clear(pw.spells)
	return n
}

// ToggleNotify stores whether the player wants cooldown notifications.
func (m *Manager) ToggleNotify(player domain.PlayerID, enabled bool) error {
	_, err := m.notify.Set(player, string(domain.ToggleCooldownNotify), enabled)
	return err
}

// SetBypass exempts one of player's wands from cooldowns, or removes the
// exemption.
func (m *Manager) SetBypass(player domain.PlayerID, wandID uuid.UUID, enabled bool) {
	key := bypassKey{player: player, wand: wandID}
	if enabled {
		m.bypass.Store(key, struct{}{})
		return
	}
	m.bypass.Delete(key)
}

// Bypassed reports whether casts from wandID by player ignore cooldowns.
func (m *Manager) Bypassed(player domain.PlayerID, wandID uuid.UUID) bool {
	_, ok := m.bypass.Load(bypassKey{player: player, wand: wandID})
	return ok
}

// BypassedWands lists player's exempt wands in string order.
func (m *Manager) BypassedWands(player domain.PlayerID) []uuid.UUID {
	var out []uuid.UUID
	m.bypass.Range(func(key, _ any) bool {
		if k := key.(bypassKey); k.player == player {
			out = append(out, k.wand)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Sweep drops windows that ended at or before nowMs and forgets players left
// with none. It returns how many windows were dropped.
func (m *Manager) Sweep(nowMs int64) int {
	removed := 0
	m.players.Range(func(key, value any) bool {
		pw := value.(*playerWindows)
		pw.mu.Lock()
		for id, readyAt := range pw.spells {
			if readyAt <= nowMs {
				delete(pw.spells, id)
				removed++
			}
		}
		if len(pw.spells) == 0 && !pw.retired {
			pw.retired = true
			m.players.CompareAndDelete(key, pw)
		}
		pw.mu.Unlock()
		return true
	})
	return removed
}

// Metrics counts tracked players, held windows and wand bypasses.
func (m *Manager) Metrics() Metrics {
	var out Metrics
	m.players.Range(func(_, value any) bool {
		pw := value.(*playerWindows)
		pw.mu.Lock()
		if !pw.retired {
			out.Players++
			out.Windows += len(pw.spells)
		}
		pw.mu.Unlock()
		return true
	})
	m.bypass.Range(func(_, _ any) bool {
		out.Bypassed++
		return true
	})
	return out
}
