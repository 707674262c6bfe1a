package repository

import (
	"context"
	"sync"

	"github.com/empirewand/wandcore/internal/domain"
)

// MemoryStateRepository keeps the document in process memory. State is lost
// on restart; it backs tests and STORAGE_DRIVER=memory.
type MemoryStateRepository struct {
	mu    sync.Mutex
	doc   *domain.Document
	saves int
}

// NewMemoryStateRepository returns an empty repository, or one seeded with doc.
func NewMemoryStateRepository(doc *domain.Document) *MemoryStateRepository {
	r := &MemoryStateRepository{}
	if doc != nil {
		r.doc = copyDocument(doc)
	}
	return r
}

func copyDocument(doc *domain.Document) *domain.Document {
	return &domain.Document{Version: doc.Version, Payload: append([]byte(nil), doc.Payload...)}
}

func (r *MemoryStateRepository) Load(_ context.Context) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return nil, nil
	}
	return copyDocument(r.doc), nil
}

func (r *MemoryStateRepository) Save(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc = copyDocument(doc)
	r.saves++
	return nil
}

// Saves returns how many times Save was called.
func (r *MemoryStateRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}
