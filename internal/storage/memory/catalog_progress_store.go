package memory

import (
	"context"
	"sort"
	"sync"

	"storm-decay-lab/internal/storage"
)

// CatalogProgressStore is an in-memory implementation of storage.CatalogProgressStore.
type CatalogProgressStore struct {
	mu    sync.RWMutex
	last  *storage.CatalogSync
	known map[int]bool
}

// NewCatalogProgressStore creates a new in-memory catalog progress store.
func NewCatalogProgressStore() *CatalogProgressStore {
	return &CatalogProgressStore{
		known: make(map[int]bool),
	}
}

// GetLastSync returns the last processed snapshot.
func (s *CatalogProgressStore) GetLastSync(_ context.Context) (*storage.CatalogSync, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.last == nil {
		return nil, storage.ErrNotFound
	}
	last := *s.last
	return &last, nil
}

// SetLastSync saves the last processed snapshot.
func (s *CatalogProgressStore) SetLastSync(_ context.Context, sync *storage.CatalogSync) error {
	if sync == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last := *sync
	s.last = &last
	return nil
}

// IsKnown checks if a catalog number has been seen.
func (s *CatalogProgressStore) IsKnown(_ context.Context, catalogID int) (bool, error) {
	if catalogID <= 0 {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.known[catalogID], nil
}

// MarkKnown records catalog numbers as seen.
func (s *CatalogProgressStore) MarkKnown(_ context.Context, catalogIDs []int) error {
	for _, id := range catalogIDs {
		if id <= 0 {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range catalogIDs {
		s.known[id] = true
	}
	return nil
}

// LoadKnown returns all known catalog numbers, ordered ASC.
func (s *CatalogProgressStore) LoadKnown(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int, 0, len(s.known))
	for id := range s.known {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

var _ storage.CatalogProgressStore = (*CatalogProgressStore)(nil)
