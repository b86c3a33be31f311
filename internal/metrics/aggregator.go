package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

// ErrNoMeasurements is returned when a run has no measurement rows.
var ErrNoMeasurements = errors.New("no measurements available for aggregation")

// Aggregator computes per-event aggregates of a run from stored rows.
type Aggregator struct {
	measurementStore    storage.MeasurementStore
	classificationStore storage.ClassificationStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(ms storage.MeasurementStore, cs storage.ClassificationStore) *Aggregator {
	return &Aggregator{measurementStore: ms, classificationStore: cs}
}

// ComputeRun loads the rows of runID and aggregates them per event.
// Returns ErrNoMeasurements if the run emitted no rows.
func (a *Aggregator) ComputeRun(ctx context.Context, runID string) ([]*domain.EventAggregate, error) {
	rows, err := a.measurementStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load measurements: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoMeasurements
	}

	classes, err := a.classificationStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load classifications: %w", err)
	}

	return Aggregate(rows, classes), nil
}

type eventKey struct {
	label string
	start int64
}

type eventAcc struct {
	agg      *domain.EventAggregate
	entities map[int]struct{}
	offsets  map[int]*offsetAcc
}

type offsetAcc struct {
	stats  domain.OffsetStats
	values []float64
}

// Aggregate groups rows by (window label, event start) and summarises each
// event. Output is ordered by label, then event start.
func Aggregate(rows []*domain.MeasurementRow, classes []*domain.ClassificationRow) []*domain.EventAggregate {
	events := make(map[eventKey]*eventAcc)
	get := func(runID, label string, start, end time.Time) *eventAcc {
		k := eventKey{label, start.UnixNano()}
		acc, ok := events[k]
		if !ok {
			acc = &eventAcc{
				agg: &domain.EventAggregate{
					RunID:       runID,
					WindowLabel: label,
					EventStart:  start,
					EventEnd:    end,
					Classes:     make(map[domain.Classification]int),
				},
				entities: make(map[int]struct{}),
				offsets:  make(map[int]*offsetAcc),
			}
			events[k] = acc
		}
		return acc
	}

	for _, r := range rows {
		acc := get(r.RunID, r.WindowLabel, r.EventStart, r.EventEnd)
		acc.entities[r.CatalogID] = struct{}{}

		o, ok := acc.offsets[r.OffsetDays]
		if !ok {
			o = &offsetAcc{stats: domain.OffsetStats{OffsetDays: r.OffsetDays}}
			acc.offsets[r.OffsetDays] = o
		}
		switch r.Status {
		case domain.DeviationObserved:
			o.stats.Observed++
			o.values = append(o.values, r.DeviationKM)
		case domain.DeviationVanished:
			o.stats.Vanished++
		default:
			o.stats.Invalid++
		}
	}

	for _, c := range classes {
		acc := get(c.RunID, c.WindowLabel, c.EventStart, time.Time{})
		acc.agg.Classes[c.Class]++
		acc.entities[c.CatalogID] = struct{}{}
	}

	out := make([]*domain.EventAggregate, 0, len(events))
	for _, acc := range events {
		acc.agg.Entities = len(acc.entities)
		for _, o := range acc.offsets {
			if len(o.values) > 0 {
				o.stats.MedianKM, _ = Median(o.values)
				o.stats.P90KM, _ = Percentile(o.values, 90)
				o.stats.MaxKM, _ = Max(o.values)
			}
			acc.agg.Offsets = append(acc.agg.Offsets, o.stats)
		}
		sort.Slice(acc.agg.Offsets, func(i, j int) bool {
			return acc.agg.Offsets[i].OffsetDays < acc.agg.Offsets[j].OffsetDays
		})
		out = append(out, acc.agg)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].WindowLabel != out[j].WindowLabel {
			return out[i].WindowLabel < out[j].WindowLabel
		}
		return out[i].EventStart.Before(out[j].EventStart)
	})
	return out
}

// OffsetCDF is the distribution of observed deviations of one window set at
// one day offset, pooled over its events.
type OffsetCDF struct {
	WindowLabel string
	OffsetDays  int
	Points      []CDFPoint
}

// DeviationCDFs pools observed deviations per (window label, offset) and
// returns their empirical distributions, ordered by label then offset.
func DeviationCDFs(rows []*domain.MeasurementRow) []OffsetCDF {
	type key struct {
		label  string
		offset int
	}
	pooled := make(map[key][]float64)
	for _, r := range rows {
		if r.Status != domain.DeviationObserved {
			continue
		}
		k := key{r.WindowLabel, r.OffsetDays}
		pooled[k] = append(pooled[k], r.DeviationKM)
	}

	out := make([]OffsetCDF, 0, len(pooled))
	for k, values := range pooled {
		out = append(out, OffsetCDF{WindowLabel: k.label, OffsetDays: k.offset, Points: CDF(values)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WindowLabel != out[j].WindowLabel {
			return out[i].WindowLabel < out[j].WindowLabel
		}
		return out[i].OffsetDays < out[j].OffsetDays
	})
	return out
}
