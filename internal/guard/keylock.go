package guard

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// KeyedMutex serializes work per key. Waiters on the same key acquire the
// lock in the order they asked for it; different keys never wait on each
// other beyond a short shard lookup.
type KeyedMutex struct {
	shards [lockShards]lockShard
}

type lockShard struct {
	mu    sync.Mutex
	locks map[string]*fifoLock
}

type fifoLock struct {
	held    bool
	refs    int
	waiters []chan struct{}
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	km := &KeyedMutex{}
	for i := range km.shards {
		km.shards[i].locks = make(map[string]*fifoLock)
	}
	return km
}

func (km *KeyedMutex) shard(key string) *lockShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &km.shards[h.Sum32()%lockShards]
}

// Lock blocks until the caller owns key and returns the matching unlock func.
func (km *KeyedMutex) Lock(key string) func() {
	s := km.shard(key)

	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &fifoLock{}
		s.locks[key] = l
	}
	l.refs++
	if !l.held {
		l.held = true
		s.mu.Unlock()
		return func() { km.unlock(s, key, l) }
	}
	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	s.mu.Unlock()

	// Ownership is handed over directly by the previous holder.
	<-ch
	return func() { km.unlock(s, key, l) }
}

func (km *KeyedMutex) unlock(s *lockShard, key string, l *fifoLock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.refs--
	if len(l.waiters) > 0 {
		next := l.waiters[0]
		l.waiters = l.waiters[1:]
		close(next)
		return
	}
	l.held = false
	if l.refs == 0 {
		delete(s.locks, key)
	}
}

// Len returns the number of keys currently locked or waited on.
func (km *KeyedMutex) Len() int {
	n := 0
	for i := range km.shards {
		s := &km.shards[i]
		s.mu.Lock()
		n += len(s.locks)
		s.mu.Unlock()
	}
	return n
}
