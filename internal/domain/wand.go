package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// PlayerID identifies a player as given by the hosting server.
type PlayerID string

// Namespace is the command namespace a wand was issued under.
type Namespace string

const (
	NamespaceEmpireWand Namespace = "ew"
	NamespaceZeist      Namespace = "mz"
)

// Namespaces lists the supported command namespaces.
var Namespaces = []Namespace{NamespaceEmpireWand, NamespaceZeist}

// ParseNamespace validates a namespace string.
func ParseNamespace(s string) (Namespace, error) {
	for _, ns := range Namespaces {
		if Namespace(s) == ns {
			return ns, nil
		}
	}
	return "", ErrValidation(fmt.Sprintf("unknown namespace %q", s))
}

// Wand is a player-owned container of bindings.
type Wand struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   PlayerID  `json:"owner_id"`
	Namespace Namespace `json:"namespace"`
}

// Binding associates a slot key on a wand with a spell.
type Binding struct {
	WandID  uuid.UUID `json:"wand_id"`
	SlotKey string    `json:"slot_key"`
	SpellID string    `json:"spell_id"`
}

// ParseWandID parses a wand identifier, mapping parse failures to UnknownWand.
func ParseWandID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, ErrUnknownWand(s)
	}
	return id, nil
}
