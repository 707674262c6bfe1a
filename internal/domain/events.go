package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

func newEvent(agg AggregateType, aggID string, evtType EventType, partition string, payload any) Event {
	data, _ := json.Marshal(payload)
	return Event{
		EventID:       uuid.New(),
		AggregateType: agg,
		AggregateID:   aggID,
		EventType:     evtType,
		PartitionKey:  partition,
		Payload:       data,
		OccurredAt:    time.Now(),
	}
}

// NewWandIssuedEvent records a wand handed to a player.
func NewWandIssuedEvent(w Wand) Event {
	return newEvent(AggregateWand, w.ID.String(), EventWandIssued, string(w.OwnerID), w)
}

// NewBindingChangedEvent records the slots written (or cleared) by one bind operation.
// An empty spellID means the slots were unbound.
func NewBindingChangedEvent(w Wand, op string, slots []string, spellID string) Event {
	return newEvent(AggregateWand, w.ID.String(), EventBindingChanged, string(w.OwnerID), map[string]interface{}{
		"wand_id":   w.ID.String(),
		"player_id": string(w.OwnerID),
		"operation": op,
		"slots":     slots,
		"spell_id":  spellID,
	})
}

// NewSpellCastEvent records a cast that passed the cooldown gate.
func NewSpellCastEvent(playerID PlayerID, wandID uuid.UUID, spellID string, readyAtMs int64) Event {
	return newEvent(AggregatePlayer, string(playerID), EventSpellCast, string(playerID), map[string]interface{}{
		"player_id":   string(playerID),
		"wand_id":     wandID.String(),
		"spell_id":    spellID,
		"ready_at_ms": readyAtMs,
	})
}

// NewCooldownClearedEvent records an admin cooldown reset. Empty spellID means all spells.
func NewCooldownClearedEvent(playerID PlayerID, spellID string) Event {
	return newEvent(AggregatePlayer, string(playerID), EventCooldownCleared, string(playerID), map[string]string{
		"player_id": string(playerID),
		"spell_id":  spellID,
	})
}

// NewToggleChangedEvent records a preference change.
func NewToggleChangedEvent(playerID PlayerID, key ToggleKey, value bool) Event {
	return newEvent(AggregatePlayer, string(playerID), EventToggleChanged, string(playerID), map[string]interface{}{
		"player_id": string(playerID),
		"key":       string(key),
		"value":     value,
	})
}

// NewCatalogReloadedEvent records a catalog swap.
func NewCatalogReloadedEvent(spellCount int) Event {
	return newEvent(AggregateCatalog, "catalog", EventCatalogReloaded, "catalog", map[string]int{
		"spell_count": spellCount,
	})
}

// NewMigrationEvent records the outcome of a migration run.
func NewMigrationEvent(from, to int, warnings []string, failure error) Event {
	evtType := EventMigrationCompleted
	payload := map[string]interface{}{
		"from_version": from,
		"to_version":   to,
		"warnings":     warnings,
	}
	if failure != nil {
		evtType = EventMigrationFailed
		payload["error"] = failure.Error()
	}
	return newEvent(AggregateState, "state", evtType, "state", payload)
}
