package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

// SatelliteStore is an in-memory implementation of storage.SatelliteStore.
type SatelliteStore struct {
	mu   sync.RWMutex
	data map[int]*domain.Satellite // keyed by catalog_id
	now  func() time.Time
}

// NewSatelliteStore creates a new in-memory satellite store.
func NewSatelliteStore() *SatelliteStore {
	return &SatelliteStore{
		data: make(map[int]*domain.Satellite),
		now:  time.Now,
	}
}

// Insert adds a new satellite. Returns ErrDuplicateKey if catalog_id exists.
func (s *SatelliteStore) Insert(_ context.Context, sat *domain.Satellite) error {
	if sat == nil || sat.CatalogID <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sat.CatalogID]; exists {
		return storage.ErrDuplicateKey
	}

	satCopy := *sat
	if satCopy.CreatedAt.IsZero() {
		satCopy.CreatedAt = s.now().UTC()
	}
	s.data[sat.CatalogID] = &satCopy
	return nil
}

// GetByID retrieves a satellite by catalog number. Returns ErrNotFound if not exists.
func (s *SatelliteStore) GetByID(_ context.Context, catalogID int) (*domain.Satellite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sat, exists := s.data[catalogID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	satCopy := *sat
	return &satCopy, nil
}

// GetByLaunchDate retrieves all satellites of one launch, ordered by catalog_id ASC.
func (s *SatelliteStore) GetByLaunchDate(_ context.Context, launch time.Time) ([]*domain.Satellite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Satellite
	for _, sat := range s.data {
		if sat.LaunchDate.Equal(launch) {
			satCopy := *sat
			result = append(result, &satCopy)
		}
	}
	sortSatellites(result)

	return result, nil
}

// GetAll retrieves all satellites, ordered by catalog_id ASC.
func (s *SatelliteStore) GetAll(_ context.Context) ([]*domain.Satellite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Satellite, 0, len(s.data))
	for _, sat := range s.data {
		satCopy := *sat
		result = append(result, &satCopy)
	}
	sortSatellites(result)

	return result, nil
}

func sortSatellites(sats []*domain.Satellite) {
	sort.Slice(sats, func(i, j int) bool {
		return sats[i].CatalogID < sats[j].CatalogID
	})
}

var _ storage.SatelliteStore = (*SatelliteStore)(nil)
