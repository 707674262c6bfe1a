package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// SchemaVersion is the persisted document version this code reads and writes.
const SchemaVersion = 3

// Document is the unit the persistence layer loads and saves. Payload is the
// JSON encoding of the state at Version, which may be a legacy shape.
type Document struct {
	Version int
	Payload []byte
}

// State is the current (SchemaVersion) persisted shape.
type State struct {
	Version int                                `json:"version"`
	Wands   map[string]WandRecord              `json:"wands"`
	Toggles map[string]map[string]bool         `json:"toggles"`
	Stats   map[string]map[string]StatCounters `json:"stats"`
}

// WandRecord is a wand with its bindings keyed by slot key.
type WandRecord struct {
	Owner     string            `json:"owner"`
	Namespace string            `json:"namespace"`
	Bindings  map[string]string `json:"bindings"`
}

// StatCounters are the persisted counters of one (player, spell) pair.
type StatCounters struct {
	CastCount  int64 `json:"cast_count"`
	BindCount  int64 `json:"bind_count"`
	LastCastMs int64 `json:"last_cast_ms"`
}

// NewState returns an empty current-version state.
func NewState() *State {
	return &State{
		Version: SchemaVersion,
		Wands:   make(map[string]WandRecord),
		Toggles: make(map[string]map[string]bool),
		Stats:   make(map[string]map[string]StatCounters),
	}
}

// EncodeState produces the canonical encoding of s. encoding/json sorts map
// keys, so equal states always encode to identical bytes.
func EncodeState(s *State) ([]byte, error) {
	if s.Wands == nil {
		s.Wands = make(map[string]WandRecord)
	}
	if s.Toggles == nil {
		s.Toggles = make(map[string]map[string]bool)
	}
	if s.Stats == nil {
		s.Stats = make(map[string]map[string]StatCounters)
	}
	for id, w := range s.Wands {
		if w.Bindings == nil {
			w.Bindings = make(map[string]string)
			s.Wands[id] = w
		}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// DecodeState strictly decodes a current-version payload. Every wand must
// have a uuid key, a valid owner and a valid namespace.
func DecodeState(payload []byte) (*State, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	s := NewState()
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if s.Version != SchemaVersion {
		return nil, fmt.Errorf("decode state: payload version %d, want %d", s.Version, SchemaVersion)
	}
	for id, w := range s.Wands {
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("decode state: wand key %q is not a uuid", id)
		}
		if err := ValidatePlayerID(PlayerID(w.Owner)); err != nil {
			return nil, fmt.Errorf("decode state: wand %s: %w", id, err)
		}
		if _, err := ParseNamespace(w.Namespace); err != nil {
			return nil, fmt.Errorf("decode state: wand %s: %w", id, err)
		}
	}
	for player, spells := range s.Stats {
		for spell, c := range spells {
			if c.CastCount < 0 || c.BindCount < 0 || c.LastCastMs < 0 {
				return nil, fmt.Errorf("decode state: negative counters for %s/%s", player, spell)
			}
		}
	}
	return s, nil
}
