// Package binding owns wands and the spells bound to their slots.
package binding

import (
	"fmt"
	"sort"
	"sync"

	"github.com/empirewand/wandcore/internal/domain"
	"github.com/empirewand/wandcore/internal/guard"
	"github.com/google/uuid"
)

// SpellResolver looks up catalog definitions.
type SpellResolver interface {
	Resolve(id string) (domain.SpellDefinition, error)
}

type wandEntry struct {
	wand  domain.Wand
	slots map[string]string // guarded by the wand lock
}

// Store holds every registered wand. Each wand is mutated under its own
// lock; operations on different wands never contend.
type Store struct {
	spells SpellResolver
	locks  *guard.KeyedMutex
	wands  sync.Map // uuid.UUID -> *wandEntry
}

// NewStore creates an empty binding store.
func NewStore(spells SpellResolver) *Store {
	return &Store{spells: spells, locks: guard.NewKeyedMutex()}
}

// RegisterWand adds w. Registering the same wand twice is a no-op; reusing
// an id for another owner is rejected.
func (s *Store) RegisterWand(w domain.Wand) error {
	if w.ID == uuid.Nil {
		return domain.ErrValidation("wand id is required")
	}
	if err := domain.ValidatePlayerID(w.OwnerID); err != nil {
		return err
	}
	if _, err := domain.ParseNamespace(string(w.Namespace)); err != nil {
		return err
	}
	v, loaded := s.wands.LoadOrStore(w.ID, &wandEntry{wand: w, slots: make(map[string]string)})
	if loaded && v.(*wandEntry).wand.OwnerID != w.OwnerID {
		return domain.ErrValidation(fmt.Sprintf("wand %s is owned by another player", w.ID))
	}
	return nil
}

// Wand returns the registered wand with id.
func (s *Store) Wand(id uuid.UUID) (domain.Wand, error) {
	v, ok := s.wands.Load(id)
	if !ok {
		return domain.Wand{}, domain.ErrUnknownWand(id.String())
	}
	return v.(*wandEntry).wand, nil
}

// WandsOf returns the wands owned by player sorted by id.
func (s *Store) WandsOf(player domain.PlayerID) []domain.Wand {
	out := []domain.Wand{}
	s.wands.Range(func(_, value any) bool {
		if w := value.(*wandEntry).wand; w.OwnerID == player {
			out = append(out, w)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// lock acquires the wand lock and returns its entry. The entry is checked
// again once the lock is held since Restore may have replaced it.
func (s *Store) lock(id uuid.UUID) (*wandEntry, func(), error) {
	for {
		v, ok := s.wands.Load(id)
		if !ok {
			return nil, nil, domain.ErrUnknownWand(id.String())
		}
		unlock := s.locks.Lock(id.String())
		if cur, ok := s.wands.Load(id); ok && cur == v {
			return v.(*wandEntry), unlock, nil
		}
		unlock()
	}
}

// Bind sets slotKey to spellID and returns the spell it replaced, if any.
func (s *Store) Bind(wandID uuid.UUID, slotKey, spellID string) (string, error) {
	key, _, err := domain.ParseSlotKey(slotKey)
	if err != nil {
		return "", err
	}
	def, err := s.spells.Resolve(spellID)
	if err != nil {
		return "", err
	}

	e, unlock, err := s.lock(wandID)
	if err != nil {
		return "", err
	}
	defer unlock()

	prev := e.slots[key]
	e.slots[key] = def.ID
	return prev, nil
}

// BindAll binds spellID to the category slot of every known category. The
// written slot keys are returned sorted.
func (s *Store) BindAll(wandID uuid.UUID, spellID string) ([]string, error) {
	def, err := s.spells.Resolve(spellID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		keys = append(keys, domain.CategorySlot(c))
	}

	e, unlock, err := s.lock(wandID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return e.write(keys, def.ID), nil
}

// BindByType binds spellID to the type slot of t and to every slot that
// currently holds a spell of type t.
func (s *Store) BindByType(wandID uuid.UUID, t domain.SpellType, spellID string) ([]string, error) {
	if _, err := domain.ParseSpellType(string(t)); err != nil {
		return nil, domain.ErrInvalidSlotKey(domain.TypeSlot(t))
	}
	return s.bindMatching(wandID, domain.TypeSlot(t), spellID, func(d domain.SpellDefinition) bool {
		return d.Type == t
	})
}

// BindByCategory binds spellID to the category slot of c and to every slot
// that currently holds a spell of category c.
func (s *Store) BindByCategory(wandID uuid.UUID, c domain.Category, spellID string) ([]string, error) {
	if _, err := domain.ParseCategory(string(c)); err != nil {
		return nil, domain.ErrInvalidSlotKey(domain.CategorySlot(c))
	}
	return s.bindMatching(wandID, domain.CategorySlot(c), spellID, func(d domain.SpellDefinition) bool {
		return d.Category == c
	})
}

func (s *Store) bindMatching(wandID uuid.UUID, canonical, spellID string, match func(domain.SpellDefinition) bool) ([]string, error) {
	def, err := s.spells.Resolve(spellID)
	if err != nil {
		return nil, err
	}

	e, unlock, err := s.lock(wandID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	keys := []string{canonical}
	for key, bound := range e.slots {
		if key == canonical {
			continue
		}
		// Bindings whose spell left the catalog match nothing.
		if d, err := s.spells.Resolve(bound); err == nil && match(d) {
			keys = append(keys, key)
		}
	}
	return e.write(keys, def.ID), nil
}

// write applies spellID to keys. Callers validate before calling so a
// multi-slot write never stops part way.
func (e *wandEntry) write(keys []string, spellID string) []string {
	for _, k := range keys {
		e.slots[k] = spellID
	}
	sort.Strings(keys)
	return keys
}

// Unbind clears slotKey and returns the spell it held. Unbinding an empty
// slot succeeds with an empty result.
func (s *Store) Unbind(wandID uuid.UUID, slotKey string) (string, error) {
	key, _, err := domain.ParseSlotKey(slotKey)
	if err != nil {
		return "", err
	}
	e, unlock, err := s.lock(wandID)
	if err != nil {
		return "", err
	}
	defer unlock()

	prev := e.slots[key]
	delete(e.slots, key)
	return prev, nil
}

// Get returns the spell bound at slotKey.
func (s *Store) Get(wandID uuid.UUID, slotKey string) (string, bool, error) {
	key, _, err := domain.ParseSlotKey(slotKey)
	if err != nil {
		return "", false, err
	}
	e, unlock, err := s.lock(wandID)
	if err != nil {
		return "", false, err
	}
	defer unlock()

	spellID, ok := e.slots[key]
	return spellID, ok, nil
}

// List returns the wand's bindings ordered by slot key.
func (s *Store) List(wandID uuid.UUID) ([]domain.Binding, error) {
	e, unlock, err := s.lock(wandID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := make([]domain.Binding, 0, len(e.slots))
	for k, spellID := range e.slots {
		out = append(out, domain.Binding{WandID: wandID, SlotKey: k, SpellID: spellID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotKey < out[j].SlotKey })
	return out, nil
}

// SetActive selects spellID as the wand's active spell. The spell must
// already be bound to another slot of the wand.
func (s *Store) SetActive(wandID uuid.UUID, spellID string) (string, error) {
	def, err := s.spells.Resolve(spellID)
	if err != nil {
		return "", err
	}
	e, unlock, err := s.lock(wandID)
	if err != nil {
		return "", err
	}
	defer unlock()

	bound := false
	for k, v := range e.slots {
		if k != domain.ActiveSlot && v == def.ID {
			bound = true
			break
		}
	}
	if !bound {
		return "", domain.ErrSpellNotBound(def.ID)
	}
	prev := e.slots[domain.ActiveSlot]
	e.slots[domain.ActiveSlot] = def.ID
	return prev, nil
}

// Snapshot copies every wand and its bindings for persistence.
func (s *Store) Snapshot() map[string]domain.WandRecord {
	out := make(map[string]domain.WandRecord)
	var ids []uuid.UUID
	s.wands.Range(func(key, _ any) bool {
		ids = append(ids, key.(uuid.UUID))
		return true
	})
	for _, id := range ids {
		e, unlock, err := s.lock(id)
		if err != nil {
			continue
		}
		bindings := make(map[string]string, len(e.slots))
		for k, v := range e.slots {
			bindings[k] = v
		}
		unlock()
		out[id.String()] = domain.WandRecord{
			Owner:     string(e.wand.OwnerID),
			Namespace: string(e.wand.Namespace),
			Bindings:  bindings,
		}
	}
	return out
}

// Restore replaces the store contents with records. Bindings with an unknown
// spell or malformed slot key are dropped and reported as warnings; a
// malformed wand is an error and leaves the store unchanged.
func (s *Store) Restore(records map[string]domain.WandRecord) ([]string, error) {
	var warnings []string
	entries := make(map[uuid.UUID]*wandEntry, len(records))
	for rawID, rec := range records {
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("restore wand %q: %w", rawID, err)
		}
		w := domain.Wand{ID: id, OwnerID: domain.PlayerID(rec.Owner), Namespace: domain.Namespace(rec.Namespace)}
		if err := domain.ValidatePlayerID(w.OwnerID); err != nil {
			return nil, fmt.Errorf("restore wand %s: %w", rawID, err)
		}
		if _, err := domain.ParseNamespace(rec.Namespace); err != nil {
			return nil, fmt.Errorf("restore wand %s: %w", rawID, err)
		}

		e := &wandEntry{wand: w, slots: make(map[string]string, len(rec.Bindings))}
		for rawKey, spellID := range rec.Bindings {
			key, _, err := domain.ParseSlotKey(rawKey)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("wand %s: dropped slot %q: invalid slot key", id, rawKey))
				continue
			}
			def, err := s.spells.Resolve(spellID)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("wand %s: dropped slot %s: unknown spell %s", id, key, spellID))
				continue
			}
			e.slots[key] = def.ID
		}
		entries[id] = e
	}

	s.wands.Range(func(key, _ any) bool {
		if _, ok := entries[key.(uuid.UUID)]; !ok {
			s.wands.Delete(key)
		}
		return true
	})
	for id, e := range entries {
		unlock := s.locks.Lock(id.String())
		s.wands.Store(id, e)
		unlock()
	}
	sort.Strings(warnings)
	return warnings, nil
}
