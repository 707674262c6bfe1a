package domain

import (
	"fmt"
	"strings"
)

// Category is the elemental school a spell belongs to.
type Category string

const (
	CategoryFire      Category = "fire"
	CategoryIce       Category = "ice"
	CategoryLightning Category = "lightning"
	CategoryEarth     Category = "earth"
	CategoryDark      Category = "dark"
	CategoryLife      Category = "life"
	CategoryHeal      Category = "heal"
	CategoryPoison    Category = "poison"
	CategoryWeather   Category = "weather"
	CategoryMovement  Category = "movement"
	CategoryControl   Category = "control"
	CategoryMisc      Category = "misc"
)

// Categories lists every known category in canonical order.
var Categories = []Category{
	CategoryFire, CategoryIce, CategoryLightning, CategoryEarth,
	CategoryDark, CategoryLife, CategoryHeal, CategoryPoison,
	CategoryWeather, CategoryMovement, CategoryControl, CategoryMisc,
}

// SpellType is how a spell is delivered. Behavior differences between types
// live with the gameplay collaborator; the engine only uses the tag.
type SpellType string

const (
	TypeProjectile SpellType = "projectile"
	TypeAura       SpellType = "aura"
	TypeInstant    SpellType = "instant"
	TypeArea       SpellType = "area"
	TypeToggle     SpellType = "toggle"
	TypeSummon     SpellType = "summon"
)

// SpellTypes lists every known spell type in canonical order.
var SpellTypes = []SpellType{
	TypeProjectile, TypeAura, TypeInstant, TypeArea, TypeToggle, TypeSummon,
}

// ParseCategory normalizes and validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", ErrValidation(fmt.Sprintf("unknown category %q", s))
}

// ParseSpellType normalizes and validates a spell type name.
func ParseSpellType(s string) (SpellType, error) {
	t := SpellType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range SpellTypes {
		if t == known {
			return t, nil
		}
	}
	return "", ErrValidation(fmt.Sprintf("unknown spell type %q", s))
}

// SpellMetadata is display data carried through the engine untouched.
type SpellMetadata struct {
	DisplayName string            `json:"display_name,omitempty" yaml:"display-name"`
	Description string            `json:"description,omitempty" yaml:"description"`
	Extra       map[string]string `json:"extra,omitempty" yaml:"extra"`
}

// SpellDefinition is an immutable catalog entry.
type SpellDefinition struct {
	ID             string        `json:"id"`
	Category       Category      `json:"category"`
	Type           SpellType     `json:"type"`
	BaseCooldownMs int64         `json:"base_cooldown_ms"`
	Metadata       SpellMetadata `json:"metadata"`
}

// NormalizeSpellID lower-cases and trims a user-supplied spell identifier.
func NormalizeSpellID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
