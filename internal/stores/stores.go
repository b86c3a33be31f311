// Package stores opens the storage backends used by the commands: PostgreSQL
// plus ClickHouse when both DSNs are configured, in-memory stores otherwise.
package stores

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"storm-decay-lab/internal/config"
	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/ingest"
	"storm-decay-lab/internal/logger"
	"storm-decay-lab/internal/normalization"
	"storm-decay-lab/internal/observability"
	"storm-decay-lab/internal/storage"
	chstore "storm-decay-lab/internal/storage/clickhouse"
	"storm-decay-lab/internal/storage/memory"
	"storm-decay-lab/internal/storage/migrations"
	pgstore "storm-decay-lab/internal/storage/postgres"
)

// Stores holds every storage implementation.
type Stores struct {
	Index           storage.IndexStore
	Element         storage.ElementStore
	Satellite       storage.SatelliteStore
	Window          storage.WindowStore
	Measurement     storage.MeasurementStore
	Classification  storage.ClassificationStore
	Run             storage.RunStore
	CatalogProgress storage.CatalogProgressStore

	// Persistent is false for in-memory stores.
	Persistent bool

	closers []func()
}

// Memory returns empty in-memory stores.
func Memory() *Stores {
	return &Stores{
		Index:           memory.NewIndexStore(),
		Element:         memory.NewElementStore(),
		Satellite:       memory.NewSatelliteStore(),
		Window:          memory.NewWindowStore(),
		Measurement:     memory.NewMeasurementStore(),
		Classification:  memory.NewClassificationStore(),
		Run:             memory.NewRunStore(),
		CatalogProgress: memory.NewCatalogProgressStore(),
	}
}

// Open connects to PostgreSQL and ClickHouse and applies migrations. With
// both DSNs empty it returns Memory(). Setting only one DSN is an error.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Log) (*Stores, error) {
	if log == nil {
		log = logger.Discard()
	}
	entry := log.WithComponent("stores")

	switch {
	case cfg.PostgresDSN == "" && cfg.ClickhouseDSN == "":
		entry.Info("no database configured, using in-memory stores")
		return Memory(), nil
	case cfg.PostgresDSN == "" || cfg.ClickhouseDSN == "":
		return nil, errors.New("postgres_dsn and clickhouse_dsn must be set together")
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	applied, err := migrations.RunPostgresMigrations(ctx, pool, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	entry.WithField("applied", len(applied)).Info("postgres ready")

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	entry.Info("clickhouse ready")

	return &Stores{
		// PostgreSQL: catalog, windows and run results
		Satellite:       pgstore.NewSatelliteStore(pool),
		Window:          pgstore.NewWindowStore(pool),
		Classification:  pgstore.NewClassificationStore(pool),
		Run:             pgstore.NewRunStore(pool),
		CatalogProgress: pgstore.NewCatalogProgressStore(pool),

		// ClickHouse: time series and trace points
		Index:       chstore.NewIndexStore(conn),
		Element:     chstore.NewElementStore(conn),
		Measurement: chstore.NewMeasurementStore(conn),

		Persistent: true,
		closers:    []func(){func() { conn.Close() }, pool.Close},
	}, nil
}

// Close releases database connections.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// IngestResult counts what IngestFiles stored.
type IngestResult struct {
	IndexSamples   int
	ElementSets    int
	Satellites     int // satellites that gained element sets
	SkippedSamples int // index hours and element sets already present in the store
}

// IngestFiles loads the Dst file and the element directory named in cfg into
// s. Empty paths are skipped. Index hours and element sets that are already
// stored are counted in SkippedSamples; the rest of the file is inserted.
func (s *Stores) IngestFiles(ctx context.Context, cfg config.IngestConfig, log *logger.Log) (*IngestResult, error) {
	if log == nil {
		log = logger.Discard()
	}
	entry := log.WithComponent("ingest")
	res := &IngestResult{}

	if cfg.DstPath != "" {
		samples, err := LoadDst(cfg.DstPath)
		if err != nil {
			observability.RecordIngestError("dst", "parse")
			return nil, err
		}
		fresh, err := s.newIndexSamples(ctx, samples)
		if err != nil {
			observability.RecordIngestError("dst", "store")
			return nil, fmt.Errorf("read stored index samples: %w", err)
		}
		if err := s.Index.InsertBulk(ctx, fresh); err != nil {
			observability.RecordIngestError("dst", "store")
			return nil, fmt.Errorf("store index samples: %w", err)
		}
		res.IndexSamples = len(fresh)
		res.SkippedSamples += len(samples) - len(fresh)
		observability.RecordIndexIngested(len(fresh))
		entry.WithFields(logger.Fields{
			"path":    cfg.DstPath,
			"samples": len(samples),
			"new":     len(fresh),
		}).Info("index loaded")
	}

	if cfg.ElementsDir != "" {
		paths, err := ingest.ElementFiles(cfg.ElementsDir)
		if err != nil {
			return nil, err
		}
		groups, err := ingest.LoadElementFiles(ctx, paths, cfg.LoadConcurrency)
		if err != nil {
			observability.RecordIngestError("elements", "parse")
			return nil, err
		}

		ids := make([]int, 0, len(groups))
		for id := range groups {
			ids = append(ids, id)
		}
		sort.Ints(ids)

		for _, id := range ids {
			elems := groups[id]
			fresh, err := s.newElementSets(ctx, id, elems)
			if err != nil {
				observability.RecordIngestError("elements", "store")
				return nil, fmt.Errorf("read stored element sets of %d: %w", id, err)
			}
			res.SkippedSamples += len(elems) - len(fresh)
			if len(fresh) == 0 {
				entry.WithField("catalog_id", id).Debug("element sets already stored")
				continue
			}
			if err := s.Element.InsertBulk(ctx, fresh); err != nil {
				observability.RecordIngestError("elements", "store")
				return nil, fmt.Errorf("store element sets of %d: %w", id, err)
			}
			res.ElementSets += len(fresh)
			res.Satellites++
			observability.RecordElementsIngested(len(fresh))
		}
		entry.WithFields(logger.Fields{
			"files":        len(paths),
			"satellites":   res.Satellites,
			"element_sets": res.ElementSets,
			"skipped":      res.SkippedSamples,
		}).Info("element sets loaded")
	}

	return res, nil
}

// newIndexSamples drops samples whose hour is already stored or repeated
// earlier in the batch. Keys are compared at millisecond precision, the
// resolution of the ClickHouse column.
func (s *Stores) newIndexSamples(ctx context.Context, samples []*domain.IndexSample) ([]*domain.IndexSample, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	lo, hi := samples[0].Time, samples[0].Time
	for _, sm := range samples[1:] {
		if sm.Time.Before(lo) {
			lo = sm.Time
		}
		if sm.Time.After(hi) {
			hi = sm.Time
		}
	}
	stored, err := s.Index.GetByTimeRange(ctx, lo, hi)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(stored)+len(samples))
	for _, sm := range stored {
		seen[sm.Time.UnixMilli()] = struct{}{}
	}
	fresh := make([]*domain.IndexSample, 0, len(samples))
	for _, sm := range samples {
		key := sm.Time.UnixMilli()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, sm)
	}
	return fresh, nil
}

// newElementSets drops element sets of one satellite whose epoch is already
// stored or repeated earlier in the batch, at microsecond precision.
func (s *Stores) newElementSets(ctx context.Context, catalogID int, elems []*domain.ElementSample) ([]*domain.ElementSample, error) {
	stored, err := s.Element.GetByCatalogID(ctx, catalogID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(stored)+len(elems))
	for _, e := range stored {
		seen[e.Epoch.UnixMicro()] = struct{}{}
	}
	fresh := make([]*domain.ElementSample, 0, len(elems))
	for _, e := range elems {
		key := e.Epoch.UnixMicro()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, e)
	}
	return fresh, nil
}

// LoadDst reads a Dst file. Files ending in .csv are read as
// timestamp,value CSV; anything else is parsed as WDC exchange format.
func LoadDst(path string) ([]*domain.IndexSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var samples []*domain.IndexSample
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		samples, err = ingest.ReadDstCSV(f)
	} else {
		samples, err = ingest.ParseDstWDC(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// LoadOrbitRaise reads the orbit-raise completion table. An empty path
// returns a nil lookup, which disables the orbit-raise strip.
func LoadOrbitRaise(path string) (normalization.CompletionLookup, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raises, err := ingest.ReadOrbitRaiseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return raises, nil
}
