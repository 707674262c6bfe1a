package migration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/empirewand/wandcore/internal/domain"
)

// Step transforms a payload from one schema version to the next. Steps are
// pure: they never touch storage and report divergences as warnings.
type Step struct {
	From  int
	To    int
	Apply func(payload []byte) ([]byte, []string, error)
}

// Steps is the ordered upgrade chain ending at domain.SchemaVersion.
var Steps = []Step{
	{From: 1, To: 2, Apply: upgradeV1},
	{From: 2, To: 3, Apply: upgradeV2},
}

// legacyToggleKeys maps toggle names used before version 3.
var legacyToggleKeys = map[string]domain.ToggleKey{
	"fx":        domain.ToggleEffects,
	"sfx":       domain.ToggleSounds,
	"cd-notify": domain.ToggleCooldownNotify,
	"switch-fx": domain.ToggleSwitchEffect,
}

// v1: a wand is an ordered spell list plus the index of the active spell.
type v1State struct {
	Version int                                 `json:"version"`
	Wands   map[string]v1Wand                   `json:"wands"`
	Toggles map[string]map[string]bool          `json:"toggles"`
	Stats   map[string]map[string]legacyCounter `json:"stats"`
}

type v1Wand struct {
	Owner     string   `json:"owner"`
	Namespace string   `json:"namespace"`
	Spells    []string `json:"spells"`
	Active    *int     `json:"active"`
}

// v2: slot maps replace the spell list; toggles and stats are unchanged.
type v2State struct {
	Version int                                 `json:"version"`
	Wands   map[string]domain.WandRecord        `json:"wands"`
	Toggles map[string]map[string]bool          `json:"toggles"`
	Stats   map[string]map[string]legacyCounter `json:"stats"`
}

type legacyCounter struct {
	Casts int64 `json:"casts"`
}

func decodeStrict(payload []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func upgradeV1(payload []byte) ([]byte, []string, error) {
	var in v1State
	if err := decodeStrict(payload, &in); err != nil {
		return nil, nil, fmt.Errorf("decode v1 payload: %w", err)
	}
	if in.Version != 1 {
		return nil, nil, fmt.Errorf("v1 payload declares version %d", in.Version)
	}

	var warnings []string
	out := v2State{
		Version: 2,
		Wands:   make(map[string]domain.WandRecord, len(in.Wands)),
		Toggles: in.Toggles,
		Stats:   in.Stats,
	}

	for _, key := range sortedKeys(in.Wands) {
		w := in.Wands[key]
		if w.Owner == "" {
			return nil, nil, fmt.Errorf("wand %q has no owner", key)
		}
		ns := w.Namespace
		if ns == "" {
			ns = string(domain.NamespaceEmpireWand)
			warnings = append(warnings, fmt.Sprintf("wand %s: missing namespace, assigned %s", key, ns))
		} else if _, err := domain.ParseNamespace(ns); err != nil {
			return nil, nil, fmt.Errorf("wand %q: %w", key, err)
		}

		id, mapped := WandID(key)
		if mapped {
			warnings = append(warnings, fmt.Sprintf("wand %s: legacy id mapped to %s", key, id))
		}
		if _, dup := out.Wands[id.String()]; dup {
			return nil, nil, fmt.Errorf("wand %q collides with existing wand %s", key, id)
		}

		bindings := make(map[string]string, len(w.Spells)+1)
		seen := make(map[string]int, len(w.Spells))
		for i, spell := range w.Spells {
			spell = domain.NormalizeSpellID(spell)
			if spell == "" {
				warnings = append(warnings, fmt.Sprintf("wand %s: empty spell at position %d skipped", key, i))
				continue
			}
			if first, ok := seen[spell]; ok {
				warnings = append(warnings, fmt.Sprintf("wand %s: spell %s listed at positions %d and %d", key, spell, first, i))
			} else {
				seen[spell] = i
			}
			bindings[domain.LiteralSlot(i)] = spell
		}

		if w.Active != nil && *w.Active >= 0 {
			if spell, ok := bindings[domain.LiteralSlot(*w.Active)]; ok {
				bindings[domain.ActiveSlot] = spell
			} else {
				warnings = append(warnings, fmt.Sprintf("wand %s: active index %d out of range, no active spell set", key, *w.Active))
			}
		}

		out.Wands[id.String()] = domain.WandRecord{Owner: w.Owner, Namespace: ns, Bindings: bindings}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, nil, fmt.Errorf("encode v2 payload: %w", err)
	}
	return data, warnings, nil
}

func upgradeV2(payload []byte) ([]byte, []string, error) {
	var in v2State
	if err := decodeStrict(payload, &in); err != nil {
		return nil, nil, fmt.Errorf("decode v2 payload: %w", err)
	}
	if in.Version != 2 {
		return nil, nil, fmt.Errorf("v2 payload declares version %d", in.Version)
	}

	var warnings []string
	out := domain.NewState()
	for id, w := range in.Wands {
		out.Wands[id] = w
	}

	for _, player := range sortedKeys(in.Toggles) {
		keys := in.Toggles[player]
		renamed := make(map[string]bool, len(keys))
		for _, legacy := range sortedKeys(keys) {
			key, ok := legacyToggleKeys[legacy]
			if !ok {
				// Keys already in the current form pass through.
				if k, err := domain.ParseToggleKey(legacy); err == nil {
					key, ok = k, true
				}
			}
			if !ok {
				warnings = append(warnings, fmt.Sprintf("player %s: unknown toggle %q dropped", player, legacy))
				continue
			}
			renamed[string(key)] = keys[legacy]
		}
		if len(renamed) > 0 {
			out.Toggles[player] = renamed
		}
	}

	for player, spells := range in.Stats {
		m := make(map[string]domain.StatCounters, len(spells))
		for spell, c := range spells {
			if c.Casts < 0 {
				return nil, nil, fmt.Errorf("player %s spell %s: negative cast count %d", player, spell, c.Casts)
			}
			m[domain.NormalizeSpellID(spell)] = domain.StatCounters{CastCount: c.Casts}
		}
		out.Stats[player] = m
	}

	// Bind counts were never recorded before; seed them from the numbered
	// and canonical slots. The active slot repeats one of them.
	for _, w := range in.Wands {
		for slot, spell := range w.Bindings {
			if slot == domain.ActiveSlot {
				continue
			}
			if out.Stats[w.Owner] == nil {
				out.Stats[w.Owner] = make(map[string]domain.StatCounters)
			}
			c := out.Stats[w.Owner][spell]
			c.BindCount++
			out.Stats[w.Owner][spell] = c
		}
	}

	data, err := domain.EncodeState(out)
	if err != nil {
		return nil, nil, err
	}
	return data, warnings, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
