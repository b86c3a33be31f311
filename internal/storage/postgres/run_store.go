package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
// Skip and class counts are stored as JSONB objects.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	skips, err := json.Marshal(nonNilSkips(r.SkipsByReason))
	if err != nil {
		return fmt.Errorf("marshal skips: %w", err)
	}
	classes, err := json.Marshal(nonNilClasses(r.Classes))
	if err != nil {
		return fmt.Errorf("marshal classes: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO pipeline_runs (
			run_id, started_at, finished_at, entities, windows, traces,
			skips_by_reason, classes, config_signature
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		r.RunID, r.StartedAt, r.FinishedAt, r.Entities, r.Windows, r.Traces,
		skips, classes, r.ConfigSignature,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, started_at, finished_at, entities, windows, traces,
		       skips_by_reason, classes, config_signature
		FROM pipeline_runs
		WHERE run_id = $1
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, storage.ErrNotFound
	}
	return runs[0], nil
}

// GetAll retrieves all runs, ordered by started_at ASC.
func (s *RunStore) GetAll(ctx context.Context) ([]*domain.RunRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, started_at, finished_at, entities, windows, traces,
		       skips_by_reason, classes, config_signature
		FROM pipeline_runs
		ORDER BY started_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("get all runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRuns(rows pgx.Rows) ([]*domain.RunRecord, error) {
	var runs []*domain.RunRecord

	for rows.Next() {
		var r domain.RunRecord
		var skips, classes []byte

		err := rows.Scan(
			&r.RunID, &r.StartedAt, &r.FinishedAt, &r.Entities, &r.Windows, &r.Traces,
			&skips, &classes, &r.ConfigSignature,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal(skips, &r.SkipsByReason); err != nil {
			return nil, fmt.Errorf("unmarshal skips of %s: %w", r.RunID, err)
		}
		if err := json.Unmarshal(classes, &r.Classes); err != nil {
			return nil, fmt.Errorf("unmarshal classes of %s: %w", r.RunID, err)
		}

		r.StartedAt = r.StartedAt.UTC()
		r.FinishedAt = r.FinishedAt.UTC()
		runs = append(runs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

func nonNilSkips(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func nonNilClasses(m map[domain.Classification]int) map[domain.Classification]int {
	if m == nil {
		return map[domain.Classification]int{}
	}
	return m
}
