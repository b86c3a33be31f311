package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

// ClassificationStore implements storage.ClassificationStore using PostgreSQL.
type ClassificationStore struct {
	pool *Pool
}

// NewClassificationStore creates a new ClassificationStore.
func NewClassificationStore(pool *Pool) *ClassificationStore {
	return &ClassificationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ClassificationStore = (*ClassificationStore)(nil)

// InsertBulk adds multiple rows in one transaction using COPY.
// Fails entire batch on any duplicate key.
func (s *ClassificationStore) InsertBulk(ctx context.Context, rows []*domain.ClassificationRow) error {
	if len(rows) == 0 {
		return nil
	}

	src := make([][]any, 0, len(rows))
	for _, r := range rows {
		if r == nil || r.RunID == "" || r.WindowLabel == "" || r.CatalogID <= 0 || r.Class == "" {
			return storage.ErrInvalidInput
		}
		src = append(src, []any{
			r.RunID, r.WindowLabel, r.EventStart, r.CatalogID, string(r.Class),
			r.UsablePoints, r.FirstKM, r.LastKM, r.MedianKM, r.MaxKM,
		})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"classifications"},
		[]string{
			"run_id", "window_label", "event_start", "catalog_id", "class",
			"usable_points", "first_km", "last_km", "median_km", "max_km",
		},
		pgx.CopyFromRows(src),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("copy classifications: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all rows of a run, ordered by (window_label, event_start, catalog_id) ASC.
func (s *ClassificationStore) GetByRunID(ctx context.Context, runID string) ([]*domain.ClassificationRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, window_label, event_start, catalog_id, class,
		       usable_points, first_km, last_km, median_km, max_km, created_at
		FROM classifications
		WHERE run_id = $1
		ORDER BY window_label ASC, event_start ASC, catalog_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get classifications by run id: %w", err)
	}
	defer rows.Close()

	return scanClassifications(rows)
}

// GetByCatalogID retrieves all rows of a satellite across runs, ordered by (run_id, event_start) ASC.
func (s *ClassificationStore) GetByCatalogID(ctx context.Context, catalogID int) ([]*domain.ClassificationRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, window_label, event_start, catalog_id, class,
		       usable_points, first_km, last_km, median_km, max_km, created_at
		FROM classifications
		WHERE catalog_id = $1
		ORDER BY run_id ASC, event_start ASC, window_label ASC
	`, catalogID)
	if err != nil {
		return nil, fmt.Errorf("get classifications by catalog id: %w", err)
	}
	defer rows.Close()

	return scanClassifications(rows)
}

func scanClassifications(rows pgx.Rows) ([]*domain.ClassificationRow, error) {
	var result []*domain.ClassificationRow

	for rows.Next() {
		var r domain.ClassificationRow
		var class string

		err := rows.Scan(
			&r.RunID, &r.WindowLabel, &r.EventStart, &r.CatalogID, &class,
			&r.UsablePoints, &r.FirstKM, &r.LastKM, &r.MedianKM, &r.MaxKM, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan classification: %w", err)
		}

		r.Class = domain.Classification(class)
		r.EventStart = r.EventStart.UTC()
		r.CreatedAt = r.CreatedAt.UTC()
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classifications: %w", err)
	}

	return result, nil
}
