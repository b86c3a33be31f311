package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

// SatelliteStore implements storage.SatelliteStore using PostgreSQL.
type SatelliteStore struct {
	pool *Pool
}

// NewSatelliteStore creates a new SatelliteStore.
func NewSatelliteStore(pool *Pool) *SatelliteStore {
	return &SatelliteStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SatelliteStore = (*SatelliteStore)(nil)

const satelliteColumns = `catalog_id, launch_date, first_epoch, last_epoch, sample_count, created_at`

// Insert adds a new satellite. Returns ErrDuplicateKey if catalog_id exists.
func (s *SatelliteStore) Insert(ctx context.Context, sat *domain.Satellite) error {
	if sat == nil || sat.CatalogID <= 0 {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO satellites (catalog_id, launch_date, first_epoch, last_epoch, sample_count)
		VALUES ($1, $2, $3, $4, $5)
	`,
		sat.CatalogID,
		nullableDate(sat.LaunchDate),
		sat.FirstEpoch,
		sat.LastEpoch,
		sat.SampleCount,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert satellite: %w", err)
	}
	return nil
}

// GetByID retrieves a satellite by catalog number. Returns ErrNotFound if not exists.
func (s *SatelliteStore) GetByID(ctx context.Context, catalogID int) (*domain.Satellite, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+satelliteColumns+` FROM satellites WHERE catalog_id = $1`, catalogID)
	if err != nil {
		return nil, fmt.Errorf("get satellite by id: %w", err)
	}
	defer rows.Close()

	sats, err := scanSatellites(rows)
	if err != nil {
		return nil, err
	}
	if len(sats) == 0 {
		return nil, storage.ErrNotFound
	}
	return sats[0], nil
}

// GetByLaunchDate retrieves all satellites of one launch, ordered by catalog_id ASC.
func (s *SatelliteStore) GetByLaunchDate(ctx context.Context, launch time.Time) ([]*domain.Satellite, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+satelliteColumns+`
		FROM satellites
		WHERE launch_date = $1
		ORDER BY catalog_id ASC
	`, nullableDate(launch))
	if err != nil {
		return nil, fmt.Errorf("get satellites by launch date: %w", err)
	}
	defer rows.Close()

	return scanSatellites(rows)
}

// GetAll retrieves all satellites, ordered by catalog_id ASC.
func (s *SatelliteStore) GetAll(ctx context.Context) ([]*domain.Satellite, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+satelliteColumns+` FROM satellites ORDER BY catalog_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("get all satellites: %w", err)
	}
	defer rows.Close()

	return scanSatellites(rows)
}

// scanSatellites scans multiple rows into a slice of Satellite.
func scanSatellites(rows pgx.Rows) ([]*domain.Satellite, error) {
	var sats []*domain.Satellite

	for rows.Next() {
		var sat domain.Satellite
		var launch *time.Time

		err := rows.Scan(
			&sat.CatalogID,
			&launch,
			&sat.FirstEpoch,
			&sat.LastEpoch,
			&sat.SampleCount,
			&sat.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan satellite: %w", err)
		}

		if launch != nil {
			sat.LaunchDate = launch.UTC()
		}
		sat.FirstEpoch = sat.FirstEpoch.UTC()
		sat.LastEpoch = sat.LastEpoch.UTC()
		sat.CreatedAt = sat.CreatedAt.UTC()
		sats = append(sats, &sat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate satellites: %w", err)
	}

	return sats, nil
}

// nullableDate maps the zero time to SQL NULL.
func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := t.UTC()
	return &d
}
