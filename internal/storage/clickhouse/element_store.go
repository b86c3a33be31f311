package clickhouse

import (
	"context"
	"fmt"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

// ElementStore implements storage.ElementStore using ClickHouse.
type ElementStore struct {
	conn *Conn
}

// NewElementStore creates a new ElementStore.
func NewElementStore(conn *Conn) *ElementStore {
	return &ElementStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ElementStore = (*ElementStore)(nil)

const elementColumns = `catalog_id, launch_date, epoch, inclination, altitude_km, drag`

// InsertBulk adds multiple element sets. Fails entire batch on duplicate (catalog_id, epoch).
func (s *ElementStore) InsertBulk(ctx context.Context, elems []*domain.ElementSample) error {
	if len(elems) == 0 {
		return nil
	}

	type key struct {
		catalogID int
		epochUs   int64
	}
	seen := make(map[key]struct{}, len(elems))
	for _, e := range elems {
		if e == nil || e.CatalogID <= 0 || e.Epoch.IsZero() {
			return storage.ErrInvalidInput
		}
		k := key{e.CatalogID, e.Epoch.UnixMicro()}
		if _, ok := seen[k]; ok {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, e := range elems {
		exists, err := s.exists(ctx, e.CatalogID, e.Epoch)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO element_samples (`+elementColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range elems {
		err = batch.Append(
			uint32(e.CatalogID), nullableDate(e.LaunchDate), e.Epoch.UTC(),
			e.Inclination, e.AltitudeKM, e.Drag,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByCatalogID retrieves all element sets of a satellite, ordered by epoch ASC.
func (s *ElementStore) GetByCatalogID(ctx context.Context, catalogID int) ([]*domain.ElementSample, error) {
	query := `
		SELECT ` + elementColumns + `
		FROM element_samples
		WHERE catalog_id = ?
		ORDER BY epoch ASC
	`

	rows, err := s.conn.Query(ctx, query, uint32(catalogID))
	if err != nil {
		return nil, fmt.Errorf("query by catalog id: %w", err)
	}
	defer rows.Close()

	return scanElements(rows)
}

// GetByTimeRange retrieves element sets of a satellite within [start, end] (inclusive).
func (s *ElementStore) GetByTimeRange(ctx context.Context, catalogID int, start, end time.Time) ([]*domain.ElementSample, error) {
	query := `
		SELECT ` + elementColumns + `
		FROM element_samples
		WHERE catalog_id = ? AND epoch >= ? AND epoch <= ?
		ORDER BY epoch ASC
	`

	rows, err := s.conn.Query(ctx, query, uint32(catalogID), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanElements(rows)
}

// GetCatalogIDs returns the distinct catalog numbers, ordered ASC.
func (s *ElementStore) GetCatalogIDs(ctx context.Context) ([]int, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT catalog_id FROM element_samples ORDER BY catalog_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query catalog ids: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan catalog id: %w", err)
		}
		ids = append(ids, int(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog ids: %w", err)
	}
	return ids, nil
}

func (s *ElementStore) exists(ctx context.Context, catalogID int, epoch time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM element_samples
		WHERE catalog_id = ? AND epoch = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, uint32(catalogID), epoch.UTC()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanElements(rows chRows) ([]*domain.ElementSample, error) {
	var elems []*domain.ElementSample

	for rows.Next() {
		var (
			e      domain.ElementSample
			id     uint32
			launch *time.Time
		)
		err := rows.Scan(&id, &launch, &e.Epoch, &e.Inclination, &e.AltitudeKM, &e.Drag)
		if err != nil {
			return nil, fmt.Errorf("scan element row: %w", err)
		}
		e.CatalogID = int(id)
		e.LaunchDate = dateOrZero(launch)
		e.Epoch = e.Epoch.UTC()
		elems = append(elems, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate element rows: %w", err)
	}

	return elems, nil
}
