package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

// IndexStore is an in-memory implementation of storage.IndexStore.
type IndexStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.IndexSample // keyed by unix nanoseconds
}

// NewIndexStore creates a new in-memory index store.
func NewIndexStore() *IndexStore {
	return &IndexStore{
		data: make(map[int64]*domain.IndexSample),
	}
}

// InsertBulk adds multiple samples. Fails entire batch on duplicate timestamp.
func (s *IndexStore) InsertBulk(_ context.Context, samples []*domain.IndexSample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[int64]struct{}, len(samples))

	// First pass: check for duplicates (existing + intra-batch)
	for _, sm := range samples {
		if sm == nil || sm.Time.IsZero() {
			return storage.ErrInvalidInput
		}
		key := sm.Time.UnixNano()
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, sm := range samples {
		sampleCopy := *sm
		s.data[sm.Time.UnixNano()] = &sampleCopy
	}

	return nil
}

// GetAll retrieves all samples, ordered by time ASC.
func (s *IndexStore) GetAll(_ context.Context) ([]*domain.IndexSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.IndexSample, 0, len(s.data))
	for _, sm := range s.data {
		sampleCopy := *sm
		result = append(result, &sampleCopy)
	}
	sortIndexSamples(result)

	return result, nil
}

// GetByTimeRange retrieves samples within [start, end] (inclusive).
func (s *IndexStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.IndexSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.IndexSample
	for _, sm := range s.data {
		if !sm.Time.Before(start) && !sm.Time.After(end) {
			sampleCopy := *sm
			result = append(result, &sampleCopy)
		}
	}
	sortIndexSamples(result)

	return result, nil
}

func sortIndexSamples(samples []*domain.IndexSample) {
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Time.Before(samples[j].Time)
	})
}

var _ storage.IndexStore = (*IndexStore)(nil)
