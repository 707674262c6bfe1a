// Package catalog holds the registry of spell definitions.
package catalog

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/empirewand/wandcore/internal/domain"
)

// Catalog is a read-mostly registry of spell definitions. A reload swaps the
// whole set at once; readers see either the old set or the new one.
type Catalog struct {
	current atomic.Pointer[snapshot]
}

type snapshot struct {
	byID       map[string]domain.SpellDefinition
	byCategory map[domain.Category][]domain.SpellDefinition
	byType     map[domain.SpellType][]domain.SpellDefinition
	all        []domain.SpellDefinition
}

// New builds a catalog from the given definitions.
func New(defs []domain.SpellDefinition) (*Catalog, error) {
	c := &Catalog{}
	if err := c.Reload(defs); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload validates defs and replaces the catalog contents.
func (c *Catalog) Reload(defs []domain.SpellDefinition) error {
	snap, err := buildSnapshot(defs)
	if err != nil {
		return err
	}
	c.current.Store(snap)
	return nil
}

func buildSnapshot(defs []domain.SpellDefinition) (*snapshot, error) {
	snap := &snapshot{
		byID:       make(map[string]domain.SpellDefinition, len(defs)),
		byCategory: make(map[domain.Category][]domain.SpellDefinition),
		byType:     make(map[domain.SpellType][]domain.SpellDefinition),
	}
	for _, d := range defs {
		if err := validate(d); err != nil {
			return nil, err
		}
		if _, dup := snap.byID[d.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate spell id %q", d.ID)
		}
		snap.byID[d.ID] = d
		snap.all = append(snap.all, d)
	}

	sort.Slice(snap.all, func(i, j int) bool { return snap.all[i].ID < snap.all[j].ID })
	for _, d := range snap.all {
		snap.byCategory[d.Category] = append(snap.byCategory[d.Category], d)
		snap.byType[d.Type] = append(snap.byType[d.Type], d)
	}
	return snap, nil
}

func validate(d domain.SpellDefinition) error {
	if err := domain.ValidateSpellID(d.ID); err != nil {
		return fmt.Errorf("catalog: spell %q: %w", d.ID, err)
	}
	if _, err := domain.ParseCategory(string(d.Category)); err != nil {
		return fmt.Errorf("catalog: spell %q: %w", d.ID, err)
	}
	if _, err := domain.ParseSpellType(string(d.Type)); err != nil {
		return fmt.Errorf("catalog: spell %q: %w", d.ID, err)
	}
	if d.BaseCooldownMs < 0 {
		return fmt.Errorf("catalog: spell %q: negative cooldown %d", d.ID, d.BaseCooldownMs)
	}
	return nil
}

func (c *Catalog) snap() *snapshot {
	if s := c.current.Load(); s != nil {
		return s
	}
	return &snapshot{}
}

// Resolve returns the definition for id or an UnknownSpell error.
func (c *Catalog) Resolve(id string) (domain.SpellDefinition, error) {
	d, ok := c.snap().byID[domain.NormalizeSpellID(id)]
	if !ok {
		return domain.SpellDefinition{}, domain.ErrUnknownSpell(id)
	}
	return d, nil
}

// ListByCategory returns the spells of a category sorted by id.
func (c *Catalog) ListByCategory(cat domain.Category) []domain.SpellDefinition {
	return clone(c.snap().byCategory[cat])
}

// ListByType returns the spells of a type sorted by id.
func (c *Catalog) ListByType(t domain.SpellType) []domain.SpellDefinition {
	return clone(c.snap().byType[t])
}

// All returns every spell sorted by id.
func (c *Catalog) All() []domain.SpellDefinition {
	return clone(c.snap().all)
}

// Len returns the number of registered spells.
func (c *Catalog) Len() int {
	return len(c.snap().all)
}

func clone(defs []domain.SpellDefinition) []domain.SpellDefinition {
	out := make([]domain.SpellDefinition, len(defs))
	copy(out, defs)
	return out
}

// Categories returns every category a spell may belong to, whether or not
// the current set has a spell in it.
func (c *Catalog) Categories() []domain.Category {
	out := make([]domain.Category, len(domain.Categories))
	copy(out, domain.Categories)
	return out
}
