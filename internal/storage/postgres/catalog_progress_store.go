package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"storm-decay-lab/internal/storage"
)

// CatalogProgressStore is a PostgreSQL implementation of storage.CatalogProgressStore.
// Uses two tables:
//   - catalog_sync: single row with the last processed snapshot
//   - known_catalog_numbers: set of seen catalog numbers
type CatalogProgressStore struct {
	pool *Pool
}

// NewCatalogProgressStore creates a new PostgreSQL catalog progress store.
func NewCatalogProgressStore(pool *Pool) *CatalogProgressStore {
	return &CatalogProgressStore{pool: pool}
}

// GetLastSync returns the last processed snapshot.
func (s *CatalogProgressStore) GetLastSync(ctx context.Context) (*storage.CatalogSync, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT synced_at, source, total
		FROM catalog_sync
		LIMIT 1
	`)

	var sync storage.CatalogSync
	if err := row.Scan(&sync.SyncedAt, &sync.Source, &sync.Total); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	sync.SyncedAt = sync.SyncedAt.UTC()

	return &sync, nil
}

// SetLastSync saves the last processed snapshot.
// Uses upsert to handle initial insert and subsequent updates.
func (s *CatalogProgressStore) SetLastSync(ctx context.Context, sync *storage.CatalogSync) error {
	if sync == nil {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO catalog_sync (id, synced_at, source, total)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET synced_at = EXCLUDED.synced_at,
		    source = EXCLUDED.source,
		    total = EXCLUDED.total
	`, sync.SyncedAt, sync.Source, sync.Total)

	return err
}

// IsKnown checks if a catalog number has been seen.
func (s *CatalogProgressStore) IsKnown(ctx context.Context, catalogID int) (bool, error) {
	if catalogID <= 0 {
		return false, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM known_catalog_numbers WHERE catalog_id = $1)
	`, catalogID)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

// MarkKnown records catalog numbers as seen.
func (s *CatalogProgressStore) MarkKnown(ctx context.Context, catalogIDs []int) error {
	if len(catalogIDs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, id := range catalogIDs {
		if id <= 0 {
			return storage.ErrInvalidInput
		}
		batch.Queue(`
			INSERT INTO known_catalog_numbers (catalog_id, seen_at)
			VALUES ($1, NOW())
			ON CONFLICT (catalog_id) DO NOTHING
		`, id)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range catalogIDs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}

	return nil
}

// LoadKnown returns all known catalog numbers, ordered ASC.
func (s *CatalogProgressStore) LoadKnown(ctx context.Context) ([]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT catalog_id FROM known_catalog_numbers ORDER BY catalog_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

var _ storage.CatalogProgressStore = (*CatalogProgressStore)(nil)
