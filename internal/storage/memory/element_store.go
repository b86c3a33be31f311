package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

type elementKey struct {
	catalogID int
	epochNs   int64
}

// ElementStore is an in-memory implementation of storage.ElementStore.
type ElementStore struct {
	mu   sync.RWMutex
	data map[elementKey]*domain.ElementSample
}

// NewElementStore creates a new in-memory element store.
func NewElementStore() *ElementStore {
	return &ElementStore{
		data: make(map[elementKey]*domain.ElementSample),
	}
}

func keyOfElement(e *domain.ElementSample) elementKey {
	return elementKey{catalogID: e.CatalogID, epochNs: e.Epoch.UnixNano()}
}

// InsertBulk adds multiple element sets. Fails entire batch on duplicate (catalog_id, epoch).
func (s *ElementStore) InsertBulk(_ context.Context, elems []*domain.ElementSample) error {
	if len(elems) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[elementKey]struct{}, len(elems))
	for _, e := range elems {
		if e == nil || e.CatalogID <= 0 || e.Epoch.IsZero() {
			return storage.ErrInvalidInput
		}
		key := keyOfElement(e)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, e := range elems {
		elemCopy := *e
		s.data[keyOfElement(e)] = &elemCopy
	}

	return nil
}

// GetByCatalogID retrieves all element sets of a satellite, ordered by epoch ASC.
func (s *ElementStore) GetByCatalogID(_ context.Context, catalogID int) ([]*domain.ElementSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ElementSample
	for k, e := range s.data {
		if k.catalogID == catalogID {
			elemCopy := *e
			result = append(result, &elemCopy)
		}
	}
	sortElements(result)

	return result, nil
}

// GetByTimeRange retrieves element sets of a satellite within [start, end] (inclusive).
func (s *ElementStore) GetByTimeRange(_ context.Context, catalogID int, start, end time.Time) ([]*domain.ElementSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ElementSample
	for k, e := range s.data {
		if k.catalogID == catalogID && !e.Epoch.Before(start) && !e.Epoch.After(end) {
			elemCopy := *e
			result = append(result, &elemCopy)
		}
	}
	sortElements(result)

	return result, nil
}

// GetCatalogIDs returns the distinct catalog numbers, ordered ASC.
func (s *ElementStore) GetCatalogIDs(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int]struct{})
	for k := range s.data {
		seen[k.catalogID] = struct{}{}
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	return ids, nil
}

func sortElements(elems []*domain.ElementSample) {
	sort.Slice(elems, func(i, j int) bool {
		return elems[i].Epoch.Before(elems[j].Epoch)
	})
}

var _ storage.ElementStore = (*ElementStore)(nil)
