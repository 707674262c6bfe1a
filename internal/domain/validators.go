package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// ActiveSlot holds the spell selected with set-spell.
const ActiveSlot = "active"

const (
	slotPrefix     = "slot:"
	categoryPrefix = "category:"
	typePrefix     = "type:"
)

var (
	spellIDRegex  = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]{0,63}$`)
	playerIDRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)
)

// SlotKind tells how a slot key addresses a wand.
type SlotKind int

const (
	SlotLiteral SlotKind = iota
	SlotCategory
	SlotType
)

// LiteralSlot returns the slot key for a numbered slot.
func LiteralSlot(n int) string {
	return slotPrefix + strconv.Itoa(n)
}

// CategorySlot returns the canonical slot key for a category.
func CategorySlot(c Category) string {
	return categoryPrefix + string(c)
}

// TypeSlot returns the canonical slot key for a spell type.
func TypeSlot(t SpellType) string {
	return typePrefix + string(t)
}

// ParseSlotKey normalizes a slot key and reports its kind.
func ParseSlotKey(raw string) (string, SlotKind, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case key == ActiveSlot:
		return key, SlotLiteral, nil
	case strings.HasPrefix(key, slotPrefix):
		n, err := strconv.Atoi(strings.TrimPrefix(key, slotPrefix))
		if err != nil || n < 0 {
			return "", 0, ErrInvalidSlotKey(raw)
		}
		return LiteralSlot(n), SlotLiteral, nil
	case strings.HasPrefix(key, categoryPrefix):
		c, err := ParseCategory(strings.TrimPrefix(key, categoryPrefix))
		if err != nil {
			return "", 0, ErrInvalidSlotKey(raw)
		}
		return CategorySlot(c), SlotCategory, nil
	case strings.HasPrefix(key, typePrefix):
		t, err := ParseSpellType(strings.TrimPrefix(key, typePrefix))
		if err != nil {
			return "", 0, ErrInvalidSlotKey(raw)
		}
		return TypeSlot(t), SlotType, nil
	}
	// A bare number is shorthand for a literal slot.
	if n, err := strconv.Atoi(key); err == nil && n >= 0 {
		return LiteralSlot(n), SlotLiteral, nil
	}
	return "", 0, ErrInvalidSlotKey(raw)
}

// ValidateSpellID checks the shape of a spell identifier.
func ValidateSpellID(id string) error {
	if !spellIDRegex.MatchString(id) {
		return ErrValidation("spell id must be 1-64 lowercase letters, digits, '-' or '_'")
	}
	return nil
}

// ValidatePlayerID checks the shape of a player identifier.
func ValidatePlayerID(id PlayerID) error {
	if !playerIDRegex.MatchString(string(id)) {
		return ErrValidation("player id must be 1-64 letters, digits, '-' or '_'")
	}
	return nil
}
