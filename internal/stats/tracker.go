// Package stats keeps per-player spell usage counters.
package stats

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/empirewand/wandcore/internal/domain"
	"github.com/empirewand/wandcore/internal/guard"
)

// DefaultWindow is how far back Window looks when none is configured.
const DefaultWindow = time.Hour

const minuteMs = int64(time.Minute / time.Millisecond)

type bucket struct {
	minute int64
	casts  int64
}

type record struct {
	counters domain.StatCounters
	buckets  []bucket // ring indexed by minute % len
}

type playerStats struct {
	spells map[string]*record
}

// Tracker records casts and binds. Counters never decrease and saturate at
// math.MaxInt64.
type Tracker struct {
	locks   *guard.KeyedMutex
	players sync.Map // domain.PlayerID -> *playerStats
	minutes int64
}

// NewTracker creates a tracker whose Window covers window, rounded up to
// whole minutes.
func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	minutes := int64((window + time.Minute - 1) / time.Minute)
	return &Tracker{locks: guard.NewKeyedMutex(), minutes: minutes}
}

func saturatingInc(v int64) int64 {
	if v == math.MaxInt64 {
		return v
	}
	return v + 1
}

func (t *Tracker) player(id domain.PlayerID) *playerStats {
	v, _ := t.players.LoadOrStore(id, &playerStats{spells: make(map[string]*record)})
	return v.(*playerStats)
}

func (t *Tracker) record(ps *playerStats, spellID string) *record {
	r, ok := ps.spells[spellID]
	if !ok {
		r = &record{}
		ps.spells[spellID] = r
	}
	return r
}

// RecordCast counts a successful cast at nowMs.
func (t *Tracker) RecordCast(player domain.PlayerID, spellID string, nowMs int64) {
	unlock := t.locks.Lock(string(player))
	defer unlock()

	r := t.record(t.player(player), spellID)
	r.counters.CastCount = saturatingInc(r.counters.CastCount)
	if nowMs > r.counters.LastCastMs {
		r.counters.LastCastMs = nowMs
	}

	if r.buckets == nil {
		r.buckets = make([]bucket, t.minutes)
	}
	minute := nowMs / minuteMs
	b := &r.buckets[minute%t.minutes]
	if b.minute != minute {
		b.minute = minute
		b.casts = 0
	}
	b.casts = saturatingInc(b.casts)
}

// RecordBind counts one slot being bound to spellID.
func (t *Tracker) RecordBind(player domain.PlayerID, spellID string) {
	unlock := t.locks.Lock(string(player))
	defer unlock()

	r := t.record(t.player(player), spellID)
	r.counters.BindCount = saturatingInc(r.counters.BindCount)
}

// Snapshot returns the player's records ordered by cast count descending,
// then spell id.
func (t *Tracker) Snapshot(player domain.PlayerID) []domain.StatRecord {
	unlock := t.locks.Lock(string(player))
	defer unlock()

	ps, ok := t.players.Load(player)
	if !ok {
		return []domain.StatRecord{}
	}
	spells := ps.(*playerStats).spells
	out := make([]domain.StatRecord, 0, len(spells))
	for id, r := range spells {
		out = append(out, domain.StatRecord{
			PlayerID:   player,
			SpellID:    id,
			CastCount:  r.counters.CastCount,
			BindCount:  r.counters.BindCount,
			LastCastMs: r.counters.LastCastMs,
		})
	}
	domain.SortStatRecords(out)
	return out
}

// Window returns casts per spell within the trailing window ending at nowMs.
// Only spells cast inside the window are listed; CastCount holds the
// windowed count.
func (t *Tracker) Window(player domain.PlayerID, nowMs int64) []domain.StatRecord {
	unlock := t.locks.Lock(string(player))
	defer unlock()

	ps, ok := t.players.Load(player)
	if !ok {
		return []domain.StatRecord{}
	}
	current := nowMs / minuteMs
	oldest := current - t.minutes + 1

	out := []domain.StatRecord{}
	for id, r := range ps.(*playerStats).spells {
		var casts int64
		for _, b := range r.buckets {
			if b.casts > 0 && b.minute >= oldest && b.minute <= current {
				casts += b.casts
				if casts < 0 {
					casts = math.MaxInt64
				}
			}
		}
		if casts > 0 {
			out = append(out, domain.StatRecord{
				PlayerID:   player,
				SpellID:    id,
				CastCount:  casts,
				BindCount:  r.counters.BindCount,
				LastCastMs: r.counters.LastCastMs,
			})
		}
	}
	domain.SortStatRecords(out)
	return out
}

// Export returns the persistent counters of every player. Window buckets are
// not persisted.
func (t *Tracker) Export() map[string]map[string]domain.StatCounters {
	out := make(map[string]map[string]domain.StatCounters)
	var players []domain.PlayerID
	t.players.Range(func(key, _ any) bool {
		players = append(players, key.(domain.PlayerID))
		return true
	})
	sort.Slice(players, func(i, j int) bool { return players[i] < players[j] })

	for _, p := range players {
		unlock := t.locks.Lock(string(p))
		v, _ := t.players.Load(p)
		if ps, ok := v.(*playerStats); ok && len(ps.spells) > 0 {
			m := make(map[string]domain.StatCounters, len(ps.spells))
			for id, r := range ps.spells {
				m[id] = r.counters
			}
			out[string(p)] = m
		}
		unlock()
	}
	return out
}

// Restore replaces all counters with data.
func (t *Tracker) Restore(data map[string]map[string]domain.StatCounters) {
	t.players.Range(func(key, _ any) bool {
		if _, ok := data[string(key.(domain.PlayerID))]; !ok {
			t.players.Delete(key)
		}
		return true
	})
	for player, spells := range data {
		ps := &playerStats{spells: make(map[string]*record, len(spells))}
		for id, c := range spells {
			ps.spells[id] = &record{counters: c}
		}
		unlock := t.locks.Lock(player)
		t.players.Store(domain.PlayerID(player), ps)
		unlock()
	}
}
