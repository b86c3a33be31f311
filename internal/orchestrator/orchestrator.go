// Package orchestrator runs the measurement pipeline end to end.
// It coordinates: index → windows → normalization → measure/classify fan-out → stores
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"

	"storm-decay-lab/internal/classify"
	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/logger"
	"storm-decay-lab/internal/measure"
	"storm-decay-lab/internal/normalization"
	"storm-decay-lab/internal/observability"
	"storm-decay-lab/internal/storage"
	"storm-decay-lab/internal/timeseries"
	"storm-decay-lab/internal/window"
)

// ErrNoIndex is returned when the index store holds no samples.
var ErrNoIndex = errors.New("no index samples available")

// Skip reasons of (entity, window) pairs.
const (
	SkipMissingBaseline = "missing_baseline"
	SkipAlreadyDrifting = "already_drifting"
	SkipMalformedSeries = "malformed_series"
)

// Orchestrator coordinates one pipeline run.
type Orchestrator struct {
	// Stores
	indexStore          storage.IndexStore
	elementStore        storage.ElementStore
	windowStore         storage.WindowStore
	measurementStore    storage.MeasurementStore
	classificationStore storage.ClassificationStore
	runStore            storage.RunStore

	normalizer normalization.NormalizationEngine

	// Configs
	windowSets      []window.Set
	measureConfig   measure.Config
	vanishedPolicy  classify.VanishedPolicy
	magnitude       bool
	workers         int
	configSignature string

	log *logger.Entry
	now func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	IndexStore          storage.IndexStore
	ElementStore        storage.ElementStore
	MeasurementStore    storage.MeasurementStore
	ClassificationStore storage.ClassificationStore

	// Optional stores, skipped when nil
	WindowStore storage.WindowStore
	RunStore    storage.RunStore

	// Normalizer turns stored element sets into entities. Required.
	Normalizer normalization.NormalizationEngine

	WindowSets      []window.Set
	Measure         measure.Config
	VanishedPolicy  classify.VanishedPolicy
	Magnitude       bool   // threshold |nT| instead of signed nT
	Workers         int    // defaults to runtime.NumCPU()
	ConfigSignature string // stored with the run record

	Log *logger.Log
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.IndexStore == nil, opts.ElementStore == nil:
		return nil, errors.New("orchestrator: index and element stores are required")
	case opts.MeasurementStore == nil, opts.ClassificationStore == nil:
		return nil, errors.New("orchestrator: measurement and classification stores are required")
	case opts.Normalizer == nil:
		return nil, errors.New("orchestrator: normalizer is required")
	case len(opts.WindowSets) == 0:
		return nil, errors.New("orchestrator: no window sets configured")
	}
	for _, s := range opts.WindowSets {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
	}
	if err := opts.Measure.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	policy := opts.VanishedPolicy
	if policy == "" {
		policy = classify.VanishedExclude
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}

	return &Orchestrator{
		indexStore:          opts.IndexStore,
		elementStore:        opts.ElementStore,
		windowStore:         opts.WindowStore,
		measurementStore:    opts.MeasurementStore,
		classificationStore: opts.ClassificationStore,
		runStore:            opts.RunStore,
		normalizer:          opts.Normalizer,
		windowSets:          opts.WindowSets,
		measureConfig:       opts.Measure,
		vanishedPolicy:      policy,
		magnitude:           opts.Magnitude,
		workers:             workers,
		configSignature:     opts.ConfigSignature,
		log:                 log.WithComponent("orchestrator"),
		now:                 time.Now,
	}, nil
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	RunID           string
	StartedAt       time.Time
	FinishedAt      time.Time
	Windows         []*domain.EventWindow
	Entities        int
	Dropped         map[normalization.DropReason]int
	Traces          int
	Skips           map[string]int
	Classes         map[domain.Classification]int
	Measurements    []*domain.MeasurementRow
	Classifications []*domain.ClassificationRow
}

// Record converts the result to its stored form.
func (r *RunResult) Record(configSignature string) *domain.RunRecord {
	skips := make(map[string]int, len(r.Skips)+len(r.Dropped))
	for k, v := range r.Skips {
		skips[k] = v
	}
	for k, v := range r.Dropped {
		skips["dropped_"+string(k)] = v
	}
	classes := make(map[domain.Classification]int, len(r.Classes))
	for k, v := range r.Classes {
		classes[k] = v
	}
	return &domain.RunRecord{
		RunID:           r.RunID,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		Entities:        r.Entities,
		Windows:         len(r.Windows),
		Traces:          r.Traces,
		SkipsByReason:   skips,
		Classes:         classes,
		ConfigSignature: configSignature,
	}
}

// Run executes the full pipeline.
// Phases:
//  1. Load the index series
//  2. Derive event windows per window set
//  3. Normalize every satellite into an entity
//  4. Measure and classify every (entity, window) pair
//  5. Store rows and the run record
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	start := o.now()
	result := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: start.UTC(),
		Dropped:   make(map[normalization.DropReason]int),
		Skips:     make(map[string]int),
		Classes:   make(map[domain.Classification]int),
	}
	log := o.log.WithField("run_id", result.RunID)

	// Phase 1: index
	index, err := o.loadIndex(ctx)
	if err != nil {
		observability.RecordPipelineRun("index", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("phase 1 (load index) failed: %w", err)
	}
	log.WithField("samples", index.Len()).Info("index loaded")

	// Phase 2: windows
	windows, err := o.deriveWindows(ctx, result.RunID, index)
	if err != nil {
		observability.RecordPipelineRun("windows", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("phase 2 (windows) failed: %w", err)
	}
	result.Windows = windows
	log.WithField("windows", len(windows)).Info("windows derived")

	// Phase 3: entities
	entities, err := o.normalize(ctx, result.Dropped)
	if err != nil {
		observability.RecordPipelineRun("normalize", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("phase 3 (normalization) failed: %w", err)
	}
	result.Entities = len(entities)
	log.WithFields(logger.Fields{"entities": len(entities), "dropped": result.Dropped}).Info("entities normalized")

	// Phase 4: measure and classify
	measurer, err := measure.New(o.measureConfig)
	if err != nil {
		return nil, err
	}
	measurer = measurer.WithIndex(index)
	classifier, err := classify.New(o.vanishedPolicy)
	if err != nil {
		return nil, err
	}
	if err := o.fanOut(ctx, result, measurer, classifier, entities, windows); err != nil {
		observability.RecordPipelineRun("measure", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("phase 4 (measure) failed: %w", err)
	}

	// Phase 5: store
	result.FinishedAt = o.now().UTC()
	if err := o.store(ctx, result); err != nil {
		observability.RecordPipelineRun("store", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("phase 5 (store) failed: %w", err)
	}

	observability.RecordPipelineRun("run", "success", time.Since(start).Seconds())
	observability.DefaultMetrics.LastSuccessfulPipeline.SetToCurrentTime()
	log.WithFields(logger.Fields{
		"traces":  result.Traces,
		"skips":   result.Skips,
		"classes": result.Classes,
	}).Info("pipeline completed")

	return result, nil
}

// loadIndex reads the whole index store as a series.
func (o *Orchestrator) loadIndex(ctx context.Context) (timeseries.Series, error) {
	samples, err := o.indexStore.GetAll(ctx)
	if err != nil {
		return timeseries.Series{}, err
	}
	if len(samples) == 0 {
		return timeseries.Series{}, ErrNoIndex
	}
	return timeseries.FromIndex(samples, o.magnitude)
}

// deriveWindows derives every window set and stores the windows under runID.
func (o *Orchestrator) deriveWindows(ctx context.Context, runID string, index timeseries.Series) ([]*domain.EventWindow, error) {
	var all []*domain.EventWindow
	for _, set := range o.windowSets {
		windows, err := window.Derive(index, set)
		if err != nil {
			return nil, err
		}
		observability.RecordWindows(set.Label, len(windows))
		o.log.WithFields(logger.Fields{"label": set.Label, "windows": len(windows)}).Debug("window set derived")

		for _, w := range windows {
			w.RunID = runID
		}
		if o.windowStore != nil && len(windows) > 0 {
			if err := o.windowStore.InsertBulk(ctx, windows); err != nil {
				return nil, fmt.Errorf("store windows %s: %w", set.Label, err)
			}
		}
		all = append(all, windows...)
	}
	return all, nil
}

// normalize builds entities for every stored satellite and counts drops.
func (o *Orchestrator) normalize(ctx context.Context, dropped map[normalization.DropReason]int) ([]*timeseries.Entity, error) {
	ids, err := o.elementStore.GetCatalogIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog ids: %w", err)
	}

	entities := make([]*timeseries.Entity, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entity, reason, err := o.normalizer.NormalizeSatellite(ctx, id)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			dropped[reason]++
			continue
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// store appends rows and the run record.
func (o *Orchestrator) store(ctx context.Context, result *RunResult) error {
	if len(result.Measurements) > 0 {
		if err := o.measurementStore.InsertBulk(ctx, result.Measurements); err != nil {
			return fmt.Errorf("store measurements: %w", err)
		}
	}
	if len(result.Classifications) > 0 {
		if err := o.classificationStore.InsertBulk(ctx, result.Classifications); err != nil {
			return fmt.Errorf("store classifications: %w", err)
		}
	}
	if o.runStore != nil {
		if err := o.runStore.Insert(ctx, result.Record(o.configSignature)); err != nil {
			return fmt.Errorf("store run: %w", err)
		}
	}
	return nil
}

// sortRows orders rows by (window_label, event_start, catalog_id, offset).
func sortRows(result *RunResult) {
	sort.Slice(result.Measurements, func(i, j int) bool {
		a, b := result.Measurements[i], result.Measurements[j]
		if a.WindowLabel != b.WindowLabel {
			return a.WindowLabel < b.WindowLabel
		}
		if !a.EventStart.Equal(b.EventStart) {
			return a.EventStart.Before(b.EventStart)
		}
		if a.CatalogID != b.CatalogID {
			return a.CatalogID < b.CatalogID
		}
		return a.OffsetDays < b.OffsetDays
	})
	sort.Slice(result.Classifications, func(i, j int) bool {
		a, b := result.Classifications[i], result.Classifications[j]
		if a.WindowLabel != b.WindowLabel {
			return a.WindowLabel < b.WindowLabel
		}
		if !a.EventStart.Equal(b.EventStart) {
			return a.EventStart.Before(b.EventStart)
		}
		return a.CatalogID < b.CatalogID
	})
}

// collect folds one job result into result. Soft outcomes become skip
// counts; anything else is returned.
func collect(result *RunResult, jr jobResult) error {
	if jr.err != nil {
		reason, ok := skipReason(jr.err)
		if !ok {
			return jr.err
		}
		result.Skips[reason]++
		observability.RecordSkip(reason)
		return nil
	}

	result.Traces++
	result.Classes[jr.class.Class]++
	result.Measurements = append(result.Measurements, jr.rows...)
	result.Classifications = append(result.Classifications, jr.class)
	return nil
}

// skipReason maps measurement sentinels to skip reasons.
func skipReason(err error) (string, bool) {
	switch {
	case errors.Is(err, measure.ErrMissingBaseline):
		return SkipMissingBaseline, true
	case errors.Is(err, measure.ErrAlreadyDrifting):
		return SkipAlreadyDrifting, true
	case errors.Is(err, measure.ErrMalformedSeries):
		return SkipMalformedSeries, true
	default:
		return "", false
	}
}
