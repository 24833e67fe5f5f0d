package eventstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store backed by a map of collection name to
// document slice. Intended for tests and single-instance deployments without
// a document database.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Document
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]Document),
	}
}

// Insert appends doc to collection. The copy stored is independent of the
// caller's map so later caller mutation cannot corrupt history.
func (s *MemoryStore) Insert(ctx context.Context, collection string, doc Document) error {
	cp := make(Document, len(doc))
	for k, v := range doc {
		cp[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], cp)
	return nil
}

// Find streams every document in collection whose fields equal filter's.
func (s *MemoryStore) Find(ctx context.Context, collection string, filter Document, fn func(Document) error) error {
	s.mu.RLock()
	docs := make([]Document, len(s.collections[collection]))
	copy(docs, s.collections[collection])
	s.mu.RUnlock()

	for _, doc := range docs {
		if !matches(doc, filter) {
			continue
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func matches(doc, filter Document) bool {
	for k, v := range filter {
		if doc[k] != v {
			return false
		}
	}
	return true
}
