package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

// WindowStore is an in-memory implementation of storage.WindowStore.
type WindowStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EventWindow // keyed by (run_id, label, start)
}

// NewWindowStore creates a new in-memory window store.
func NewWindowStore() *WindowStore {
	return &WindowStore{
		data: make(map[string]*domain.EventWindow),
	}
}

func windowKey(w *domain.EventWindow) string {
	return fmt.Sprintf("%s|%s|%d", w.RunID, w.Label, w.Start.UnixNano())
}

// InsertBulk adds multiple windows. Fails entire batch on duplicate (run_id, label, start).
func (s *WindowStore) InsertBulk(_ context.Context, windows []*domain.EventWindow) error {
	if len(windows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(windows))
	for _, w := range windows {
		if w == nil || w.RunID == "" || w.Label == "" || !w.Start.Before(w.End) {
			return storage.ErrInvalidInput
		}
		key := windowKey(w)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, w := range windows {
		windowCopy := *w
		s.data[windowKey(w)] = &windowCopy
	}

	return nil
}

// GetByRunID retrieves the windows derived by one run, ordered by (label, start) ASC.
func (s *WindowStore) GetByRunID(_ context.Context, runID string) ([]*domain.EventWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EventWindow
	for _, w := range s.data {
		if w.RunID == runID {
			windowCopy := *w
			result = append(result, &windowCopy)
		}
	}
	sortWindows(result)

	return result, nil
}

// GetByLabel retrieves all windows of one set across runs, ordered by (start, run_id) ASC.
func (s *WindowStore) GetByLabel(_ context.Context, label string) ([]*domain.EventWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EventWindow
	for _, w := range s.data {
		if w.Label == label {
			windowCopy := *w
			result = append(result, &windowCopy)
		}
	}
	sortWindows(result)

	return result, nil
}

// GetAll retrieves all windows, ordered by (label, start, run_id) ASC.
func (s *WindowStore) GetAll(_ context.Context) ([]*domain.EventWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.EventWindow, 0, len(s.data))
	for _, w := range s.data {
		windowCopy := *w
		result = append(result, &windowCopy)
	}
	sortWindows(result)

	return result, nil
}

func sortWindows(ws []*domain.EventWindow) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].Label != ws[j].Label {
			return ws[i].Label < ws[j].Label
		}
		if !ws[i].Start.Equal(ws[j].Start) {
			return ws[i].Start.Before(ws[j].Start)
		}
		return ws[i].RunID < ws[j].RunID
	})
}

var _ storage.WindowStore = (*WindowStore)(nil)
