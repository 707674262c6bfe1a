// Package toggle stores per-player presentation preferences.
package toggle

import (
	"sort"
	"sync"

	"github.com/empirewand/wandcore/internal/domain"
	"github.com/empirewand/wandcore/internal/guard"
)

// Setting is one toggle as seen by a player.
type Setting struct {
	Key      domain.ToggleKey `json:"key"`
	Value    bool             `json:"value"`
	Explicit bool             `json:"explicit"`
}

// Registry holds explicitly set toggles. Absent keys read as their default.
// Each player's map is replaced wholesale on write, so readers never lock.
type Registry struct {
	locks  *guard.KeyedMutex
	values sync.Map // domain.PlayerID -> map[domain.ToggleKey]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{locks: guard.NewKeyedMutex()}
}

func (r *Registry) load(player domain.PlayerID) map[domain.ToggleKey]bool {
	if v, ok := r.values.Load(player); ok {
		return v.(map[domain.ToggleKey]bool)
	}
	return nil
}

// Get returns the value of key for player.
func (r *Registry) Get(player domain.PlayerID, key string) (bool, error) {
	k, err := domain.ParseToggleKey(key)
	if err != nil {
		return false, err
	}
	if v, ok := r.load(player)[k]; ok {
		return v, nil
	}
	return domain.ToggleDefaults[k], nil
}

// Set stores value for key and returns the previous effective value.
func (r *Registry) Set(player domain.PlayerID, key string, value bool) (bool, error) {
	k, err := domain.ParseToggleKey(key)
	if err != nil {
		return false, err
	}

	unlock := r.locks.Lock(string(player))
	defer unlock()

	current := r.load(player)
	prev, ok := current[k]
	if !ok {
		prev = domain.ToggleDefaults[k]
	}

	next := make(map[domain.ToggleKey]bool, len(current)+1)
	for ck, cv := range current {
		next[ck] = cv
	}
	next[k] = value
	r.values.Store(player, next)
	return prev, nil
}

// List returns every known key for player with defaults applied, sorted by key.
func (r *Registry) List(player domain.PlayerID) []Setting {
	current := r.load(player)
	out := make([]Setting, 0, len(domain.ToggleDefaults))
	for _, k := range domain.ToggleKeys() {
		v, ok := current[k]
		if !ok {
			v = domain.ToggleDefaults[k]
		}
		out = append(out, Setting{Key: k, Value: v, Explicit: ok})
	}
	return out
}

// Snapshot returns the explicitly set toggles of every player.
func (r *Registry) Snapshot() map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	r.values.Range(func(key, value any) bool {
		m := value.(map[domain.ToggleKey]bool)
		if len(m) == 0 {
			return true
		}
		pm := make(map[string]bool, len(m))
		for k, v := range m {
			pm[string(k)] = v
		}
		out[string(key.(domain.PlayerID))] = pm
		return true
	})
	return out
}

// Restore replaces the registry contents. Unknown keys are dropped and
// reported as warnings.
func (r *Registry) Restore(data map[string]map[string]bool) []string {
	var warnings []string
	fresh := make(map[domain.PlayerID]map[domain.ToggleKey]bool, len(data))
	for player, keys := range data {
		m := make(map[domain.ToggleKey]bool, len(keys))
		for key, v := range keys {
			k, err := domain.ParseToggleKey(key)
			if err != nil {
				warnings = append(warnings, "dropped unknown toggle "+key+" for "+player)
				continue
			}
			m[k] = v
		}
		fresh[domain.PlayerID(player)] = m
	}

	r.values.Range(func(key, _ any) bool {
		if _, ok := fresh[key.(domain.PlayerID)]; !ok {
			r.values.Delete(key)
		}
		return true
	})
	for player, m := range fresh {
		unlock := r.locks.Lock(string(player))
		r.values.Store(player, m)
		unlock()
	}
	sort.Strings(warnings)
	return warnings
}
