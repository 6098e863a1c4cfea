package docstore

import (
	"context"
	"sync"

	"Minerva/internal/source/schema"
)

// InMemoryDocStore is a thread-safe, in-memory implementation of the
// DocStore interface, used in tests and single-process setups.
type InMemoryDocStore struct {
	mu      sync.RWMutex
	records map[string]*schema.ContentRecord
}

// NewInMemoryDocStore creates a new instance of InMemoryDocStore.
func NewInMemoryDocStore() *InMemoryDocStore {
	return &InMemoryDocStore{
		records: make(map[string]*schema.ContentRecord),
	}
}

// Add stores records by ID.
func (s *InMemoryDocStore) Add(ctx context.Context, records map[string]*schema.ContentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range records {
		s.records[id] = rec
	}
	return nil
}

// Get retrieves records by ID; missing IDs are absent from the result.
func (s *InMemoryDocStore) Get(ctx context.Context, ids []string) (map[string]*schema.ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*schema.ContentRecord)
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			result[id] = rec
		}
	}
	return result, nil
}

// Delete removes records by ID.
func (s *InMemoryDocStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

// Len returns the number of stored records.
func (s *InMemoryDocStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// compile-time check to ensure InMemoryDocStore implements the DocStore interface
var _ DocStore = (*InMemoryDocStore)(nil)
