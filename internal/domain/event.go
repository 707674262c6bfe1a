package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventWandIssued         EventType = "wand.wand.issued"
	EventBindingChanged     EventType = "wand.binding.changed"
	EventSpellCast          EventType = "wand.spell.cast"
	EventCooldownCleared    EventType = "wand.cooldown.cleared"
	EventToggleChanged      EventType = "wand.toggle.changed"
	EventCatalogReloaded    EventType = "wand.catalog.reloaded"
	EventMigrationCompleted EventType = "wand.migration.completed"
	EventMigrationFailed    EventType = "wand.migration.failed"
)

// AggregateType enumerates the aggregate root types for published events.
type AggregateType string

const (
	AggregateWand    AggregateType = "wand"
	AggregatePlayer  AggregateType = "player"
	AggregateCatalog AggregateType = "catalog"
	AggregateState   AggregateType = "state"
)

// Event is the envelope handed to the event publisher.
type Event struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}
