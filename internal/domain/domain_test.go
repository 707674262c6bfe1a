package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Validator Tests ---

func TestParseSlotKey(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKey  string
		wantKind SlotKind
		wantErr  bool
	}{
		{"literal slot", "slot:3", "slot:3", SlotLiteral, false},
		{"bare number", "7", "slot:7", SlotLiteral, false},
		{"active slot", "Active", "active", SlotLiteral, false},
		{"category slot", "category:Fire", "category:fire", SlotCategory, false},
		{"type slot", " type:aura ", "type:aura", SlotType, false},
		{"negative slot", "slot:-1", "", 0, true},
		{"unknown category", "category:plasma", "", 0, true},
		{"unknown type", "type:beam", "", 0, true},
		{"garbage", "left-hand", "", 0, true},
		{"empty", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, kind, err := ParseSlotKey(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, HasCode(err, CodeInvalidSlotKey))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestValidateSpellID(t *testing.T) {
	assert.NoError(t, ValidateSpellID("fireball"))
	assert.NoError(t, ValidateSpellID("magic-missile_2"))
	assert.Error(t, ValidateSpellID(""))
	assert.Error(t, ValidateSpellID("Fireball"))
	assert.Error(t, ValidateSpellID("-leading"))
}

func TestValidatePlayerID(t *testing.T) {
	assert.NoError(t, ValidatePlayerID("Steve_01"))
	assert.Error(t, ValidatePlayerID(""))
	assert.Error(t, ValidatePlayerID("has space"))
}

func TestParseToggleKey(t *testing.T) {
	k, err := ParseToggleKey("Effects")
	require.NoError(t, err)
	assert.Equal(t, ToggleEffects, k)

	_, err = ParseToggleKey("glow")
	require.Error(t, err)
	assert.True(t, HasCode(err, CodeUnknownToggleKey))
}

func TestParseOnOff(t *testing.T) {
	for _, s := range []string{"on", "ENABLE", "true"} {
		v, err := ParseOnOff(s)
		require.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"off", "disable", "false"} {
		v, err := ParseOnOff(s)
		require.NoError(t, err)
		assert.False(t, v, s)
	}
	_, err := ParseOnOff("maybe")
	assert.Error(t, err)
}

func TestParseCategoryAndType(t *testing.T) {
	c, err := ParseCategory(" ICE ")
	require.NoError(t, err)
	assert.Equal(t, CategoryIce, c)

	st, err := ParseSpellType("Projectile")
	require.NoError(t, err)
	assert.Equal(t, TypeProjectile, st)

	_, err = ParseCategory("plasma")
	assert.Error(t, err)
}

func TestParseWandID(t *testing.T) {
	id := uuid.New()
	got, err := ParseWandID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseWandID("not-a-uuid")
	assert.True(t, HasCode(err, CodeUnknownWand))
}

// --- AppError Tests ---

func TestAppError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := ErrUnknownSpell("meteor")
		assert.Equal(t, "UNKNOWN_SPELL: unknown spell: meteor", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := ErrInternal("database error", cause)
		assert.Contains(t, err.Error(), "INTERNAL_ERROR")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrMigrationFailed(cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestHasCode_Wrapped(t *testing.T) {
	err := fmt.Errorf("bind: %w", ErrUnknownWand("abc"))
	assert.True(t, HasCode(err, CodeUnknownWand))
	assert.False(t, HasCode(err, CodeUnknownSpell))
	assert.False(t, HasCode(errors.New("plain"), CodeUnknownWand))
}

func TestErrorFactories(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"ErrUnknownSpell", ErrUnknownSpell("x"), CodeUnknownSpell, 404},
		{"ErrUnknownWand", ErrUnknownWand("x"), CodeUnknownWand, 404},
		{"ErrUnknownToggleKey", ErrUnknownToggleKey("x"), CodeUnknownToggleKey, 400},
		{"ErrInvalidSlotKey", ErrInvalidSlotKey("x"), CodeInvalidSlotKey, 400},
		{"ErrSpellNotBound", ErrSpellNotBound("x"), CodeSpellNotBound, 409},
		{"ErrPermissionDenied", ErrPermissionDenied("ew.command.bind"), CodePermissionDenied, 403},
		{"ErrMigrationInProgress", ErrMigrationInProgress(), CodeMigrationInProgress, 503},
		{"ErrMigrationFailed", ErrMigrationFailed(nil), CodeMigrationFailed, 503},
		{"ErrValidation", ErrValidation("bad input"), CodeValidation, 400},
		{"ErrRateLimited", ErrRateLimited("slow down"), CodeRateLimited, 429},
		{"ErrInternal", ErrInternal("oops", nil), CodeInternal, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.Status)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

// --- Stats Tests ---

func TestSortStatRecords(t *testing.T) {
	records := []StatRecord{
		{SpellID: "leap", CastCount: 3},
		{SpellID: "comet", CastCount: 5},
		{SpellID: "aura", CastCount: 3},
	}
	SortStatRecords(records)
	assert.Equal(t, "comet", records[0].SpellID)
	assert.Equal(t, "aura", records[1].SpellID)
	assert.Equal(t, "leap", records[2].SpellID)
}

// --- State Tests ---

func TestEncodeState_Deterministic(t *testing.T) {
	s := NewState()
	s.Wands["b6a1c0de-0000-4000-8000-000000000002"] = WandRecord{Owner: "p1", Namespace: "ew", Bindings: map[string]string{"slot:1": "comet", "slot:0": "leap"}}
	s.Wands["a6a1c0de-0000-4000-8000-000000000001"] = WandRecord{Owner: "p2", Namespace: "mz"}
	s.Toggles["p1"] = map[string]bool{"sounds": false, "effects": true}

	first, err := EncodeState(s)
	require.NoError(t, err)

	decoded, err := DecodeState(first)
	require.NoError(t, err)
	second, err := EncodeState(decoded)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDecodeState_Rejects(t *testing.T) {
	t.Run("wrong version", func(t *testing.T) {
		_, err := DecodeState([]byte(`{"version":2,"wands":{},"toggles":{},"stats":{}}`))
		assert.Error(t, err)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := DecodeState([]byte(`{"version":3,"wands":{},"toggles":{},"stats":{},"extra":1}`))
		assert.Error(t, err)
	})

	t.Run("negative counters", func(t *testing.T) {
		_, err := DecodeState([]byte(`{"version":3,"wands":{},"toggles":{},"stats":{"p":{"leap":{"cast_count":-1,"bind_count":0,"last_cast_ms":0}}}}`))
		assert.Error(t, err)
	})

	t.Run("wand key not a uuid", func(t *testing.T) {
		_, err := DecodeState([]byte(`{"version":3,"wands":{"not-a-uuid":{"owner":"steve","namespace":"ew","bindings":{}}},"toggles":{},"stats":{}}`))
		assert.ErrorContains(t, err, "not-a-uuid")
	})

	t.Run("invalid owner", func(t *testing.T) {
		_, err := DecodeState([]byte(`{"version":3,"wands":{"6f1c1f3e-3b8a-4d8e-9a55-0c5e0e1f2a3b":{"owner":"bad owner!","namespace":"ew","bindings":{}}},"toggles":{},"stats":{}}`))
		assert.Error(t, err)
	})

	t.Run("unknown namespace", func(t *testing.T) {
		_, err := DecodeState([]byte(`{"version":3,"wands":{"6f1c1f3e-3b8a-4d8e-9a55-0c5e0e1f2a3b":{"owner":"steve","namespace":"xx","bindings":{}}},"toggles":{},"stats":{}}`))
		assert.Error(t, err)
	})
}

// --- Event Factory Tests ---

func TestNewBindingChangedEvent(t *testing.T) {
	w := Wand{ID: uuid.New(), OwnerID: "steve", Namespace: NamespaceEmpireWand}
	event := NewBindingChangedEvent(w, "bindall", []string{"category:fire"}, "comet")

	assert.NotEqual(t, uuid.Nil, event.EventID)
	assert.Equal(t, AggregateWand, event.AggregateType)
	assert.Equal(t, w.ID.String(), event.AggregateID)
	assert.Equal(t, EventBindingChanged, event.EventType)
	assert.Equal(t, "steve", event.PartitionKey)
	assert.False(t, event.OccurredAt.IsZero())

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, "comet", payload["spell_id"])
	assert.Equal(t, "bindall", payload["operation"])
}

func TestNewSpellCastEvent(t *testing.T) {
	wandID := uuid.New()
	event := NewSpellCastEvent("alex", wandID, "leap", 1500)

	assert.Equal(t, AggregatePlayer, event.AggregateType)
	assert.Equal(t, EventSpellCast, event.EventType)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, float64(1500), payload["ready_at_ms"])
	assert.Equal(t, wandID.String(), payload["wand_id"])
}

func TestNewMigrationEvent(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		event := NewMigrationEvent(1, 3, nil, nil)
		assert.Equal(t, EventMigrationCompleted, event.EventType)
	})

	t.Run("failed", func(t *testing.T) {
		event := NewMigrationEvent(1, 3, nil, errors.New("bad payload"))
		assert.Equal(t, EventMigrationFailed, event.EventType)

		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(event.Payload, &payload))
		assert.Equal(t, "bad payload", payload["error"])
	})
}
