package memory

import (
	"context"
	"sort"
	"sync"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunRecord // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunRecord),
	}
}

// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.RunID] = copyRun(r)
	return nil
}

// GetByID retrieves a run. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRun(r), nil
}

// GetAll retrieves all runs, ordered by started_at ASC.
func (s *RunStore) GetAll(_ context.Context) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunRecord, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, copyRun(r))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})

	return result, nil
}

// copyRun deep-copies the count maps so callers cannot mutate stored state.
func copyRun(r *domain.RunRecord) *domain.RunRecord {
	runCopy := *r
	if r.SkipsByReason != nil {
		runCopy.SkipsByReason = make(map[string]int, len(r.SkipsByReason))
		for k, v := range r.SkipsByReason {
			runCopy.SkipsByReason[k] = v
		}
	}
	if r.Classes != nil {
		runCopy.Classes = make(map[domain.Classification]int, len(r.Classes))
		for k, v := range r.Classes {
			runCopy.Classes[k] = v
		}
	}
	return &runCopy
}

var _ storage.RunStore = (*RunStore)(nil)
