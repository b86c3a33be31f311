package metrics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage/memory"
)

var (
	stormA = time.Date(2024, 5, 10, 17, 0, 0, 0, time.UTC)
	stormB = time.Date(2024, 10, 10, 15, 0, 0, 0, time.UTC)
)

func makeRow(label string, event time.Time, catalogID, offset int, status domain.DeviationStatus, km float64) *domain.MeasurementRow {
	return &domain.MeasurementRow{
		RunID:       "run-1",
		WindowLabel: label,
		EventStart:  event,
		EventEnd:    event.Add(12 * time.Hour),
		CatalogID:   catalogID,
		OffsetDays:  offset,
		Status:      status,
		DeviationKM: km,
	}
}

func makeClass(label string, event time.Time, catalogID int, c domain.Classification) *domain.ClassificationRow {
	return &domain.ClassificationRow{RunID: "run-1", WindowLabel: label, EventStart: event, CatalogID: catalogID, Class: c}
}

func TestAggregate_PerEventAndOffset(t *testing.T) {
	rows := []*domain.MeasurementRow{
		makeRow("storm_p99", stormB, 1, 1, domain.DeviationObserved, 0.5),
		makeRow("storm_p99", stormA, 1, 1, domain.DeviationObserved, 1),
		makeRow("storm_p99", stormA, 2, 1, domain.DeviationObserved, 3),
		makeRow("storm_p99", stormA, 3, 1, domain.DeviationVanished, 0),
		makeRow("storm_p99", stormA, 1, 2, domain.DeviationObserved, 2),
		makeRow("storm_p99", stormA, 2, 2, domain.DeviationInvalid, 0),
		makeRow("quiet", stormA, 1, 1, domain.DeviationObserved, 0.01),
	}
	classes := []*domain.ClassificationRow{
		makeClass("storm_p99", stormA, 1, domain.ClassPermanentDecay),
		makeClass("storm_p99", stormA, 2, domain.ClassUndecidable),
		makeClass("storm_p99", stormA, 3, domain.ClassUndecidable),
	}

	aggs := Aggregate(rows, classes)
	if len(aggs) != 3 {
		t.Fatalf("aggregates = %d, want 3", len(aggs))
	}
	if aggs[0].WindowLabel != "quiet" || !aggs[1].EventStart.Equal(stormA) || !aggs[2].EventStart.Equal(stormB) {
		t.Fatalf("unexpected order: %s %v, %s %v", aggs[0].WindowLabel, aggs[1].EventStart, aggs[2].WindowLabel, aggs[2].EventStart)
	}

	a := aggs[1]
	if a.Entities != 3 {
		t.Errorf("entities = %d, want 3", a.Entities)
	}
	if a.Classes[domain.ClassUndecidable] != 2 || a.Classes[domain.ClassPermanentDecay] != 1 {
		t.Errorf("classes = %v", a.Classes)
	}
	if !a.EventEnd.Equal(stormA.Add(12 * time.Hour)) {
		t.Errorf("event end = %v", a.EventEnd)
	}
	if len(a.Offsets) != 2 {
		t.Fatalf("offsets = %+v", a.Offsets)
	}

	d1 := a.Offsets[0]
	if d1.OffsetDays != 1 || d1.Observed != 2 || d1.Vanished != 1 || d1.Invalid != 0 {
		t.Errorf("day 1 counts = %+v", d1)
	}
	if d1.MedianKM != 2 || d1.MaxKM != 3 {
		t.Errorf("day 1 median/max = %v/%v, want 2/3", d1.MedianKM, d1.MaxKM)
	}
	if math.Abs(d1.P90KM-2.8) > 1e-9 {
		t.Errorf("day 1 p90 = %v, want 2.8", d1.P90KM)
	}

	d2 := a.Offsets[1]
	if d2.Observed != 1 || d2.Invalid != 1 || d2.MedianKM != 2 {
		t.Errorf("day 2 = %+v", d2)
	}
}

func TestAggregate_NoObservedPoints(t *testing.T) {
	aggs := Aggregate([]*domain.MeasurementRow{
		makeRow("storm_p99", stormA, 1, 1, domain.DeviationVanished, 0),
	}, nil)
	if len(aggs) != 1 || len(aggs[0].Offsets) != 1 {
		t.Fatalf("aggregates = %+v", aggs)
	}
	if got := aggs[0].Offsets[0]; got.MedianKM != 0 || got.MaxKM != 0 || got.Vanished != 1 {
		t.Errorf("offset = %+v", got)
	}
}

func TestDeviationCDFs(t *testing.T) {
	cdfs := DeviationCDFs([]*domain.MeasurementRow{
		makeRow("storm_p99", stormA, 1, 2, domain.DeviationObserved, 4),
		makeRow("storm_p99", stormB, 1, 1, domain.DeviationObserved, 2),
		makeRow("storm_p99", stormA, 2, 1, domain.DeviationObserved, 1),
		makeRow("storm_p99", stormA, 3, 1, domain.DeviationVanished, 0),
	})
	if len(cdfs) != 2 {
		t.Fatalf("cdfs = %+v", cdfs)
	}
	if cdfs[0].OffsetDays != 1 || len(cdfs[0].Points) != 2 {
		t.Fatalf("day 1 cdf = %+v", cdfs[0])
	}
	if cdfs[0].Points[0].Value != 1 || cdfs[0].Points[0].Fraction != 0.5 || cdfs[0].Points[1].Fraction != 1 {
		t.Errorf("day 1 points = %+v", cdfs[0].Points)
	}
}

func TestComputeRun(t *testing.T) {
	ctx := context.Background()
	ms := memory.NewMeasurementStore()
	cs := memory.NewClassificationStore()
	agg := NewAggregator(ms, cs)

	if _, err := agg.ComputeRun(ctx, "run-1"); !errors.Is(err, ErrNoMeasurements) {
		t.Fatalf("err = %v, want ErrNoMeasurements", err)
	}

	if err := ms.InsertBulk(ctx, []*domain.MeasurementRow{
		makeRow("storm_p99", stormA, 1, 1, domain.DeviationObserved, 1),
	}); err != nil {
		t.Fatalf("seed measurements: %v", err)
	}
	if err := cs.InsertBulk(ctx, []*domain.ClassificationRow{
		makeClass("storm_p99", stormA, 1, domain.ClassUndecidable),
	}); err != nil {
		t.Fatalf("seed classifications: %v", err)
	}

	aggs, err := agg.ComputeRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ComputeRun: %v", err)
	}
	if len(aggs) != 1 || aggs[0].Classes[domain.ClassUndecidable] != 1 {
		t.Errorf("aggregates = %+v", aggs)
	}
}
