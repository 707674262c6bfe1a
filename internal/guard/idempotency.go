package guard

import (
	"context"
	"sync"

	"github.com/empirewand/wandcore/internal/domain"
)

// IdempotencyGuard drops redelivered intents by intent id. It remembers at
// most capacity ids, forgetting the oldest first.
type IdempotencyGuard struct {
	mu       sync.Mutex
	seen     map[string]bool
	order    []string
	capacity int
}

// NewIdempotencyGuard creates a new in-memory idempotency guard.
func NewIdempotencyGuard(capacity int) *IdempotencyGuard {
	if capacity <= 0 {
		capacity = 10000
	}
	return &IdempotencyGuard{
		seen:     make(map[string]bool),
		capacity: capacity,
	}
}

// Check returns whether the given key has already been processed.
func (ig *IdempotencyGuard) Check(_ context.Context, key string) domain.GuardResult {
	if key == "" {
		return domain.GuardResult{Allowed: true}
	}

	ig.mu.Lock()
	defer ig.mu.Unlock()

	if ig.seen[key] {
		return domain.GuardResult{
			Allowed: false,
			Reason:  "duplicate intent: id already processed",
			Guard:   "idempotency",
		}
	}

	ig.seen[key] = true
	ig.order = append(ig.order, key)
	if len(ig.order) > ig.capacity {
		oldest := ig.order[0]
		ig.order = ig.order[1:]
		delete(ig.seen, oldest)
	}
	return domain.GuardResult{Allowed: true}
}

// Remove deletes a key from the seen set (for retry scenarios).
func (ig *IdempotencyGuard) Remove(key string) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	if !ig.seen[key] {
		return
	}
	delete(ig.seen, key)
	for i, k := range ig.order {
		if k == key {
			ig.order = append(ig.order[:i], ig.order[i+1:]...)
			break
		}
	}
}
