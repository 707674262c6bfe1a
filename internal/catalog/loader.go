package catalog

import (
	"fmt"
	"os"
	"sort"

	"github.com/empirewand/wandcore/internal/domain"
	"gopkg.in/yaml.v3"
)

// fileSpell is one entry of spells.yml.
type fileSpell struct {
	Category    string            `yaml:"category"`
	Type        string            `yaml:"type"`
	Cooldown    int64             `yaml:"cooldown-ms"`
	DisplayName string            `yaml:"display-name"`
	Description string            `yaml:"description"`
	Extra       map[string]string `yaml:"extra"`
}

type spellsFile struct {
	ConfigVersion string               `yaml:"config-version"`
	Spells        map[string]fileSpell `yaml:"spells"`
}

// Parse decodes a spells.yml document into definitions sorted by id.
func Parse(data []byte) ([]domain.SpellDefinition, error) {
	var f spellsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse spells file: %w", err)
	}
	if len(f.Spells) == 0 {
		return nil, fmt.Errorf("parse spells file: no spells defined")
	}

	defs := make([]domain.SpellDefinition, 0, len(f.Spells))
	for id, s := range f.Spells {
		cat, err := domain.ParseCategory(s.Category)
		if err != nil {
			return nil, fmt.Errorf("spell %q: %w", id, err)
		}
		typ, err := domain.ParseSpellType(s.Type)
		if err != nil {
			return nil, fmt.Errorf("spell %q: %w", id, err)
		}
		defs = append(defs, domain.SpellDefinition{
			ID:             domain.NormalizeSpellID(id),
			Category:       cat,
			Type:           typ,
			BaseCooldownMs: s.Cooldown,
			Metadata: domain.SpellMetadata{
				DisplayName: s.DisplayName,
				Description: s.Description,
				Extra:       s.Extra,
			},
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

// LoadFile reads definitions from path, or returns the built-in set when
// path is empty.
func LoadFile(path string) ([]domain.SpellDefinition, error) {
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spells file: %w", err)
	}
	return Parse(data)
}
