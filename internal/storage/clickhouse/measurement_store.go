package clickhouse

import (
	"context"
	"fmt"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

// MeasurementStore implements storage.MeasurementStore using ClickHouse.
type MeasurementStore struct {
	conn *Conn
}

// NewMeasurementStore creates a new MeasurementStore.
func NewMeasurementStore(conn *Conn) *MeasurementStore {
	return &MeasurementStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MeasurementStore = (*MeasurementStore)(nil)

const measurementColumns = `
	run_id, window_label, event_start, event_end, catalog_id, launch_date,
	offset_days, status, deviation_km, baseline_km, anchor_epoch, anchor_km,
	sample_epoch, max_drag, peak_deviation_km, index_nt`

type measurementKey struct {
	runID      string
	label      string
	eventStart int64
	catalogID  int
	offsetDays int
}

func keyOf(r *domain.MeasurementRow) measurementKey {
	return measurementKey{r.RunID, r.WindowLabel, r.EventStart.UnixMilli(), r.CatalogID, r.OffsetDays}
}

// InsertBulk adds multiple rows. Fails entire batch on duplicate
// (run_id, window_label, event_start, catalog_id, offset_days).
func (s *MeasurementStore) InsertBulk(ctx context.Context, rows []*domain.MeasurementRow) error {
	if len(rows) == 0 {
		return nil
	}

	seen := make(map[measurementKey]struct{}, len(rows))
	runs := make(map[string]struct{})
	for _, r := range rows {
		if r == nil || r.RunID == "" || r.WindowLabel == "" || r.CatalogID <= 0 || r.Status == "" {
			return storage.ErrInvalidInput
		}
		k := keyOf(r)
		if _, ok := seen[k]; ok {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		runs[r.RunID] = struct{}{}
	}

	for runID := range runs {
		existing, err := s.GetByRunID(ctx, runID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for _, e := range existing {
			if _, ok := seen[keyOf(e)]; ok {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO measurements (`+measurementColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		var sampleEpoch *time.Time
		if r.SampleEpoch != nil {
			t := r.SampleEpoch.UTC()
			sampleEpoch = &t
		}
		err = batch.Append(
			r.RunID, r.WindowLabel, r.EventStart.UTC(), r.EventEnd.UTC(),
			uint32(r.CatalogID), nullableDate(r.LaunchDate),
			int32(r.OffsetDays), string(r.Status), r.DeviationKM, r.BaselineKM,
			r.AnchorEpoch.UTC(), r.AnchorKM,
			sampleEpoch, r.MaxDrag, r.PeakDeviationKM, r.IndexNT,
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

// GetByRunID retrieves all rows of a run, ordered by
// (window_label, event_start, catalog_id, offset_days) ASC.
func (s *MeasurementStore) GetByRunID(ctx context.Context, runID string) ([]*domain.MeasurementRow, error) {
	query := `
		SELECT ` + measurementColumns + `
		FROM measurements
		WHERE run_id = ?
		ORDER BY window_label ASC, event_start ASC, catalog_id ASC, offset_days ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanMeasurements(rows)
}

func scanMeasurements(rows chRows) ([]*domain.MeasurementRow, error) {
	var out []*domain.MeasurementRow

	for rows.Next() {
		var (
			r         domain.MeasurementRow
			catalogID uint32
			launch    *time.Time
			offset    int32
			status    string
		)
		err := rows.Scan(
			&r.RunID, &r.WindowLabel, &r.EventStart, &r.EventEnd, &catalogID, &launch,
			&offset, &status, &r.DeviationKM, &r.BaselineKM, &r.AnchorEpoch, &r.AnchorKM,
			&r.SampleEpoch, &r.MaxDrag, &r.PeakDeviationKM, &r.IndexNT,
		)
		if err != nil {
			return nil, fmt.Errorf("scan measurement row: %w", err)
		}
		r.CatalogID = int(catalogID)
		r.LaunchDate = dateOrZero(launch)
		r.OffsetDays = int(offset)
		r.Status = domain.DeviationStatus(status)
		r.EventStart = r.EventStart.UTC()
		r.EventEnd = r.EventEnd.UTC()
		r.AnchorEpoch = r.AnchorEpoch.UTC()
		if r.SampleEpoch != nil {
			t := r.SampleEpoch.UTC()
			r.SampleEpoch = &t
		}
		out = append(out, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurement rows: %w", err)
	}

	return out, nil
}
