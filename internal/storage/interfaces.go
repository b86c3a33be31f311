package storage

import (
	"context"
	"time"

	"storm-decay-lab/internal/domain"
)

// IndexStore provides access to dst_index storage.
type IndexStore interface {
	// InsertBulk adds multiple samples. Fails entire batch on duplicate timestamp.
	InsertBulk(ctx context.Context, samples []*domain.IndexSample) error

	// GetAll retrieves all samples, ordered by time ASC.
	GetAll(ctx context.Context) ([]*domain.IndexSample, error)

	// GetByTimeRange retrieves samples within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.IndexSample, error)
}

// SatelliteStore provides access to satellites storage.
type SatelliteStore interface {
	// Insert adds a new satellite. Returns ErrDuplicateKey if catalog_id exists.
	Insert(ctx context.Context, s *domain.Satellite) error

	// GetByID retrieves a satellite by catalog number. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, catalogID int) (*domain.Satellite, error)

	// GetByLaunchDate retrieves all satellites of one launch, ordered by catalog_id ASC.
	GetByLaunchDate(ctx context.Context, launch time.Time) ([]*domain.Satellite, error)

	// GetAll retrieves all satellites, ordered by catalog_id ASC.
	GetAll(ctx context.Context) ([]*domain.Satellite, error)
}

// ElementStore provides access to element_samples storage.
type ElementStore interface {
	// InsertBulk adds multiple element sets. Fails entire batch on duplicate (catalog_id, epoch).
	InsertBulk(ctx context.Context, elems []*domain.ElementSample) error

	// GetByCatalogID retrieves all element sets of a satellite, ordered by epoch ASC.
	GetByCatalogID(ctx context.Context, catalogID int) ([]*domain.ElementSample, error)

	// GetByTimeRange retrieves element sets of a satellite within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, catalogID int, start, end time.Time) ([]*domain.ElementSample, error)

	// GetCatalogIDs returns the distinct catalog numbers, ordered ASC.
	GetCatalogIDs(ctx context.Context) ([]int, error)
}

// WindowStore provides access to event_windows storage.
type WindowStore interface {
	// InsertBulk adds multiple windows. Fails entire batch on duplicate
	// (run_id, label, start) or on a window without a run id.
	InsertBulk(ctx context.Context, windows []*domain.EventWindow) error

	// GetByRunID retrieves the windows derived by one run, ordered by (label, start) ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.EventWindow, error)

	// GetByLabel retrieves all windows of one set across runs, ordered by (start, run_id) ASC.
	GetByLabel(ctx context.Context, label string) ([]*domain.EventWindow, error)

	// GetAll retrieves all windows, ordered by (label, start, run_id) ASC.
	GetAll(ctx context.Context) ([]*domain.EventWindow, error)
}

// MeasurementStore provides access to measurements storage.
type MeasurementStore interface {
	// InsertBulk adds multiple rows. Fails entire batch on duplicate
	// (run_id, window_label, event_start, catalog_id, offset_days).
	InsertBulk(ctx context.Context, rows []*domain.MeasurementRow) error

	// GetByRunID retrieves all rows of a run, ordered by
	// (window_label, event_start, catalog_id, offset_days) ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.MeasurementRow, error)
}

// ClassificationStore provides access to classifications storage.
type ClassificationStore interface {
	// InsertBulk adds multiple rows. Fails entire batch on duplicate
	// (run_id, window_label, event_start, catalog_id).
	InsertBulk(ctx context.Context, rows []*domain.ClassificationRow) error

	// GetByRunID retrieves all rows of a run, ordered by
	// (window_label, event_start, catalog_id) ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.ClassificationRow, error)

	// GetByCatalogID retrieves all rows of a satellite across runs, ordered by (run_id, event_start) ASC.
	GetByCatalogID(ctx context.Context, catalogID int) ([]*domain.ClassificationRow, error)
}

// RunStore provides access to pipeline_runs storage.
type RunStore interface {
	// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetAll retrieves all runs, ordered by started_at ASC.
	GetAll(ctx context.Context) ([]*domain.RunRecord, error)
}
