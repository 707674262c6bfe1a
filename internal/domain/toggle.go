package domain

import (
	"sort"
	"strings"
)

// ToggleKey is a per-player presentation preference.
type ToggleKey string

const (
	ToggleEffects        ToggleKey = "effects"
	ToggleSounds         ToggleKey = "sounds"
	ToggleCooldownNotify ToggleKey = "cooldown_notify"
	ToggleSwitchEffect   ToggleKey = "switch_effect"
)

// ToggleDefaults holds the value each key takes when a player never set it.
var ToggleDefaults = map[ToggleKey]bool{
	ToggleEffects:        true,
	ToggleSounds:         true,
	ToggleCooldownNotify: true,
	ToggleSwitchEffect:   true,
}

// ToggleKeys returns the known keys in sorted order.
func ToggleKeys() []ToggleKey {
	keys := make([]ToggleKey, 0, len(ToggleDefaults))
	for k := range ToggleDefaults {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ParseToggleKey validates a toggle key against the fixed set.
func ParseToggleKey(s string) (ToggleKey, error) {
	k := ToggleKey(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := ToggleDefaults[k]; !ok {
		return "", ErrUnknownToggleKey(s)
	}
	return k, nil
}

// ParseOnOff accepts the on/off spellings players type.
func ParseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "enable", "enabled", "true":
		return true, nil
	case "off", "disable", "disabled", "false":
		return false, nil
	}
	return false, ErrValidation("value must be on or off")
}
