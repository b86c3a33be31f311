package clickhouse

import (
	"context"
	"fmt"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

// IndexStore implements storage.IndexStore using ClickHouse.
type IndexStore struct {
	conn *Conn
}

// NewIndexStore creates a new IndexStore.
func NewIndexStore(conn *Conn) *IndexStore {
	return &IndexStore{conn: conn}
}

// Compile-time interface check.
var _ storage.IndexStore = (*IndexStore)(nil)

// InsertBulk adds multiple samples. Fails entire batch on duplicate timestamp.
func (s *IndexStore) InsertBulk(ctx context.Context, samples []*domain.IndexSample) error {
	if len(samples) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(samples))
	var lo, hi time.Time
	for i, smp := range samples {
		if smp == nil || smp.Time.IsZero() {
			return storage.ErrInvalidInput
		}
		k := smp.Time.UnixMilli()
		if _, ok := seen[k]; ok {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		if i == 0 || smp.Time.Before(lo) {
			lo = smp.Time
		}
		if i == 0 || smp.Time.After(hi) {
			hi = smp.Time
		}
	}

	// Stored rows are checked with one range query over the batch span.
	existing, err := s.GetByTimeRange(ctx, lo, hi)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for _, e := range existing {
		if _, ok := seen[e.Time.UnixMilli()]; ok {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO dst_index (ts, nano_tesla)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, smp := range samples {
		if err := batch.Append(smp.Time.UTC(), smp.NanoTesla); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetAll retrieves all samples, ordered by time ASC.
func (s *IndexStore) GetAll(ctx context.Context) ([]*domain.IndexSample, error) {
	rows, err := s.conn.Query(ctx, `SELECT ts, nano_tesla FROM dst_index ORDER BY ts ASC`)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanIndexSamples(rows)
}

// GetByTimeRange retrieves samples within [start, end] (inclusive).
func (s *IndexStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.IndexSample, error) {
	query := `
		SELECT ts, nano_tesla
		FROM dst_index
		WHERE ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanIndexSamples(rows)
}

func scanIndexSamples(rows chRows) ([]*domain.IndexSample, error) {
	var samples []*domain.IndexSample

	for rows.Next() {
		var smp domain.IndexSample
		if err := rows.Scan(&smp.Time, &smp.NanoTesla); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}
		smp.Time = smp.Time.UTC()
		samples = append(samples, &smp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index rows: %w", err)
	}

	return samples, nil
}
