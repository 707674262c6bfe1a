package migration

import (
	"crypto/sha256"

	"github.com/google/uuid"
)

// wandIDNamespace scopes deterministic ids generated for legacy wands.
const wandIDNamespace = "wand"

// DeterministicUUID derives a UUID from a legacy identifier using SHA256, so
// the same legacy id maps to the same UUID on every run.
func DeterministicUUID(namespace, legacyID string) uuid.UUID {
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte(":"))
	h.Write([]byte(legacyID))
	digest := h.Sum(nil)

	// First 16 bytes, stamped as version 5 (SHA-based)
	var id uuid.UUID
	copy(id[:], digest[:16])
	id[6] = (id[6] & 0x0f) | 0x50 // version 5
	id[8] = (id[8] & 0x3f) | 0x80 // variant RFC4122
	return id
}

// WandID returns the canonical id for a stored wand key. Keys that already
// parse as UUIDs are kept; anything else is mapped deterministically.
func WandID(key string) (uuid.UUID, bool) {
	if id, err := uuid.Parse(key); err == nil {
		return id, false
	}
	return DeterministicUUID(wandIDNamespace, key), true
}
