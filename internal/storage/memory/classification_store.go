package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

type classificationKey struct {
	runID      string
	label      string
	eventStart int64
	catalogID  int
}

// ClassificationStore is an in-memory implementation of storage.ClassificationStore.
type ClassificationStore struct {
	mu   sync.RWMutex
	data map[classificationKey]*domain.ClassificationRow
	now  func() time.Time
}

// NewClassificationStore creates a new in-memory classification store.
func NewClassificationStore() *ClassificationStore {
	return &ClassificationStore{
		data: make(map[classificationKey]*domain.ClassificationRow),
		now:  time.Now,
	}
}

func keyOfClassification(r *domain.ClassificationRow) classificationKey {
	return classificationKey{
		runID:      r.RunID,
		label:      r.WindowLabel,
		eventStart: r.EventStart.UnixNano(),
		catalogID:  r.CatalogID,
	}
}

// InsertBulk adds multiple rows. Fails entire batch on duplicate key.
func (s *ClassificationStore) InsertBulk(_ context.Context, rows []*domain.ClassificationRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[classificationKey]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.RunID == "" || r.WindowLabel == "" || r.CatalogID <= 0 || r.Class == "" {
			return storage.ErrInvalidInput
		}
		key := keyOfClassification(r)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	createdAt := s.now().UTC()
	for _, r := range rows {
		rowCopy := *r
		if rowCopy.CreatedAt.IsZero() {
			rowCopy.CreatedAt = createdAt
		}
		s.data[keyOfClassification(r)] = &rowCopy
	}

	return nil
}

// GetByRunID retrieves all rows of a run, ordered by (window_label, event_start, catalog_id) ASC.
func (s *ClassificationStore) GetByRunID(_ context.Context, runID string) ([]*domain.ClassificationRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClassificationRow
	for _, r := range s.data {
		if r.RunID == runID {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.WindowLabel != b.WindowLabel {
			return a.WindowLabel < b.WindowLabel
		}
		if !a.EventStart.Equal(b.EventStart) {
			return a.EventStart.Before(b.EventStart)
		}
		return a.CatalogID < b.CatalogID
	})

	return result, nil
}

// GetByCatalogID retrieves all rows of a satellite across runs, ordered by (run_id, event_start) ASC.
func (s *ClassificationStore) GetByCatalogID(_ context.Context, catalogID int) ([]*domain.ClassificationRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClassificationRow
	for _, r := range s.data {
		if r.CatalogID == catalogID {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.RunID != b.RunID {
			return a.RunID < b.RunID
		}
		if !a.EventStart.Equal(b.EventStart) {
			return a.EventStart.Before(b.EventStart)
		}
		return a.WindowLabel < b.WindowLabel
	})

	return result, nil
}

var _ storage.ClassificationStore = (*ClassificationStore)(nil)
