package memory

import (
	"context"
	"sort"
	"sync"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

type measurementKey struct {
	runID      string
	label      string
	eventStart int64
	catalogID  int
	offsetDays int
}

// MeasurementStore is an in-memory implementation of storage.MeasurementStore.
type MeasurementStore struct {
	mu   sync.RWMutex
	data map[measurementKey]*domain.MeasurementRow
}

// NewMeasurementStore creates a new in-memory measurement store.
func NewMeasurementStore() *MeasurementStore {
	return &MeasurementStore{
		data: make(map[measurementKey]*domain.MeasurementRow),
	}
}

func keyOfMeasurement(r *domain.MeasurementRow) measurementKey {
	return measurementKey{
		runID:      r.RunID,
		label:      r.WindowLabel,
		eventStart: r.EventStart.UnixNano(),
		catalogID:  r.CatalogID,
		offsetDays: r.OffsetDays,
	}
}

// InsertBulk adds multiple rows. Fails entire batch on duplicate key.
func (s *MeasurementStore) InsertBulk(_ context.Context, rows []*domain.MeasurementRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[measurementKey]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.RunID == "" || r.WindowLabel == "" || r.CatalogID <= 0 {
			return storage.ErrInvalidInput
		}
		key := keyOfMeasurement(r)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range rows {
		rowCopy := *r
		s.data[keyOfMeasurement(r)] = &rowCopy
	}

	return nil
}

// GetByRunID retrieves all rows of a run, ordered by
// (window_label, event_start, catalog_id, offset_days) ASC.
func (s *MeasurementStore) GetByRunID(_ context.Context, runID string) ([]*domain.MeasurementRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MeasurementRow
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
		if a.CatalogID != b.CatalogID {
			return a.CatalogID < b.CatalogID
		}
		return a.OffsetDays < b.OffsetDays
	})

	return result, nil
}

var _ storage.MeasurementStore = (*MeasurementStore)(nil)
