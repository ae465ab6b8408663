package idempotency

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-node setups.
type MemoryStore struct {
	mu        sync.RWMutex
	processed map[string]struct{}
}

// NewMemoryStore creates an in-memory processed-event store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{processed: make(map[string]struct{})}
}

func (s *MemoryStore) HasProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.processed[eventID]
	return ok, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[eventID] = struct{}{}
	return nil
}
