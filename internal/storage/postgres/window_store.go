package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

// WindowStore implements storage.WindowStore using PostgreSQL.
type WindowStore struct {
	pool *Pool
}

// NewWindowStore creates a new WindowStore.
func NewWindowStore(pool *Pool) *WindowStore {
	return &WindowStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WindowStore = (*WindowStore)(nil)

// InsertBulk adds multiple windows atomically. Fails entire batch on duplicate (run_id, label, start).
func (s *WindowStore) InsertBulk(ctx context.Context, windows []*domain.EventWindow) error {
	if len(windows) == 0 {
		return nil
	}
	for _, w := range windows {
		if w == nil || w.RunID == "" || w.Label == "" || !w.Start.Before(w.End) {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO event_windows (run_id, window_id, label, start_time, end_time, duration_ms, threshold, percentile, mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, w := range windows {
		_, err := tx.Exec(ctx, query,
			w.RunID,
			w.ID,
			w.Label,
			w.Start,
			w.End,
			w.Duration.Milliseconds(),
			w.Threshold,
			w.Percentile,
			string(w.Mode),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert window in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves the windows derived by one run, ordered by (label, start) ASC.
func (s *WindowStore) GetByRunID(ctx context.Context, runID string) ([]*domain.EventWindow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+windowColumns+`
		FROM event_windows
		WHERE run_id = $1
		ORDER BY label ASC, start_time ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get windows by run: %w", err)
	}
	defer rows.Close()

	return scanWindows(rows)
}

// GetByLabel retrieves all windows of one set across runs, ordered by (start, run_id) ASC.
func (s *WindowStore) GetByLabel(ctx context.Context, label string) ([]*domain.EventWindow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+windowColumns+`
		FROM event_windows
		WHERE label = $1
		ORDER BY start_time ASC, run_id ASC
	`, label)
	if err != nil {
		return nil, fmt.Errorf("get windows by label: %w", err)
	}
	defer rows.Close()

	return scanWindows(rows)
}

// GetAll retrieves all windows, ordered by (label, start, run_id) ASC.
func (s *WindowStore) GetAll(ctx context.Context) ([]*domain.EventWindow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+windowColumns+`
		FROM event_windows
		ORDER BY label ASC, start_time ASC, run_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("get all windows: %w", err)
	}
	defer rows.Close()

	return scanWindows(rows)
}

const windowColumns = "run_id, window_id, label, start_time, end_time, duration_ms, threshold, percentile, mode"

func scanWindows(rows pgx.Rows) ([]*domain.EventWindow, error) {
	var windows []*domain.EventWindow

	for rows.Next() {
		var w domain.EventWindow
		var durationMs int64
		var mode string

		if err := rows.Scan(&w.RunID, &w.ID, &w.Label, &w.Start, &w.End, &durationMs, &w.Threshold, &w.Percentile, &mode); err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}

		w.Start = w.Start.UTC()
		w.End = w.End.UTC()
		w.Duration = time.Duration(durationMs) * time.Millisecond
		w.Mode = domain.ThresholdMode(mode)
		windows = append(windows, &w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate windows: %w", err)
	}

	return windows, nil
}
