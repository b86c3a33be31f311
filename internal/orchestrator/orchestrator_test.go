package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"storm-decay-lab/internal/classify"
	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/measure"
	"storm-decay-lab/internal/normalization"
	"storm-decay-lab/internal/storage/memory"
	"storm-decay-lab/internal/window"
)

var (
	origin = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	event  = origin.Add(30 * 24 * time.Hour)
)

type testStores struct {
	index           *memory.IndexStore
	elements        *memory.ElementStore
	satellites      *memory.SatelliteStore
	windows         *memory.WindowStore
	measurements    *memory.MeasurementStore
	classifications *memory.ClassificationStore
	runs            *memory.RunStore
}

func createTestStores() testStores {
	return testStores{
		index:           memory.NewIndexStore(),
		elements:        memory.NewElementStore(),
		satellites:      memory.NewSatelliteStore(),
		windows:         memory.NewWindowStore(),
		measurements:    memory.NewMeasurementStore(),
		classifications: memory.NewClassificationStore(),
		runs:            memory.NewRunStore(),
	}
}

// seedIndex stores 60 days of hourly -10 nT with a six hour -200 nT storm
// starting at event.
func seedIndex(t *testing.T, s testStores) {
	t.Helper()
	var samples []*domain.IndexSample
	for h := 0; h < 60*24; h++ {
		ts := origin.Add(time.Duration(h) * time.Hour)
		v := -10.0
		if !ts.Before(event) && ts.Before(event.Add(6*time.Hour)) {
			v = -200
		}
		samples = append(samples, &domain.IndexSample{Time: ts, NanoTesla: v})
	}
	if err := s.index.InsertBulk(context.Background(), samples); err != nil {
		t.Fatalf("insert index: %v", err)
	}
}

// seedSatellite stores one element set per day at noon for days [from, to).
func seedSatellite(t *testing.T, s testStores, catalogID, from, to int, km func(epoch time.Time) float64) {
	t.Helper()
	var elems []*domain.ElementSample
	for d := from; d < to; d++ {
		epoch := origin.Add(time.Duration(d)*24*time.Hour + 12*time.Hour)
		elems = append(elems, &domain.ElementSample{
			CatalogID:  catalogID,
			LaunchDate: origin,
			Epoch:      epoch,
			AltitudeKM: km(epoch),
			Drag:       1e-4,
		})
	}
	if err := s.elements.InsertBulk(context.Background(), elems); err != nil {
		t.Fatalf("insert elements of %d: %v", catalogID, err)
	}
}

func seedFleet(t *testing.T, s testStores) {
	t.Helper()
	seedIndex(t, s)

	// steady
	seedSatellite(t, s, 100, 0, 60, func(time.Time) float64 { return 550 })
	// decays 1 km per day after the event
	seedSatellite(t, s, 200, 0, 60, func(e time.Time) float64 {
		if e.Before(event) {
			return 550
		}
		return 550 - e.Sub(event).Hours()/24
	})
	// lowered 10 km shortly before the event
	seedSatellite(t, s, 300, 0, 60, func(e time.Time) float64 {
		if e.Before(origin.Add(26 * 24 * time.Hour)) {
			return 550
		}
		return 540
	})
	// too few element sets
	seedSatellite(t, s, 400, 0, 5, func(time.Time) float64 { return 550 })
	// first tracked after the event
	seedSatellite(t, s, 500, 31, 71, func(time.Time) float64 { return 550 })
}

func newTestOrchestrator(t *testing.T, s testStores, workers int) *Orchestrator {
	t.Helper()
	orch, err := New(Options{
		IndexStore:          s.index,
		ElementStore:        s.elements,
		MeasurementStore:    s.measurements,
		ClassificationStore: s.classifications,
		WindowStore:         s.windows,
		RunStore:            s.runs,
		Normalizer:          normalization.NewRunner(s.elements, s.satellites, normalization.DefaultRules(), nil, nil),
		WindowSets: []window.Set{{
			Label:     "storm",
			Mode:      domain.ModeAbove,
			Threshold: 100,
			MergeGap:  10 * 24 * time.Hour,
		}},
		Measure:         measure.DefaultConfig(),
		VanishedPolicy:  classify.VanishedExclude,
		Magnitude:       true,
		Workers:         workers,
		ConfigSignature: "sig-test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return orch
}

func TestOrchestrator_Run(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	seedFleet(t, stores)

	result, err := newTestOrchestrator(t, stores, 3).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.RunID == "" {
		t.Error("expected run id")
	}
	if len(result.Windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(result.Windows))
	}
	w := result.Windows[0]
	if !w.Start.Equal(event) || !w.End.Equal(event.Add(6*time.Hour)) {
		t.Errorf("window = [%v, %v]", w.Start, w.End)
	}

	if result.Entities != 4 {
		t.Errorf("expected 4 entities, got %d", result.Entities)
	}
	if result.Dropped[normalization.DropTooFewSamples] != 1 {
		t.Errorf("dropped = %v", result.Dropped)
	}
	if result.Skips[SkipAlreadyDrifting] != 1 || result.Skips[SkipMissingBaseline] != 1 {
		t.Errorf("skips = %v", result.Skips)
	}
	if result.Traces != 2 {
		t.Fatalf("expected 2 traces, got %d", result.Traces)
	}
	if result.Classes[domain.ClassNoImpact] != 1 || result.Classes[domain.ClassPermanentDecay] != 1 {
		t.Errorf("classes = %v", result.Classes)
	}

	// Rows come back sorted by catalog id then offset.
	if len(result.Measurements) != 6 {
		t.Fatalf("expected 6 measurement rows, got %d", len(result.Measurements))
	}
	want := []struct {
		catalogID int
		offset    int
		km        float64
	}{
		{100, 1, 0}, {100, 5, 0}, {100, 10, 0},
		{200, 1, 1.5}, {200, 5, 5.5}, {200, 10, 10.5},
	}
	for i, wr := range want {
		row := result.Measurements[i]
		if row.CatalogID != wr.catalogID || row.OffsetDays != wr.offset {
			t.Fatalf("row %d = (%d, %d), want (%d, %d)", i, row.CatalogID, row.OffsetDays, wr.catalogID, wr.offset)
		}
		if row.Status != domain.DeviationObserved {
			t.Errorf("row %d status = %s", i, row.Status)
		}
		if diff := row.DeviationKM - wr.km; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("row %d deviation = %v, want %v", i, row.DeviationKM, wr.km)
		}
		if row.RunID != result.RunID || row.WindowLabel != "storm" {
			t.Errorf("row %d not tagged with run and window", i)
		}
		if row.SampleEpoch == nil {
			t.Errorf("row %d missing sample epoch", i)
		}
		if row.IndexNT == nil {
			t.Errorf("row %d missing index annotation", i)
		}
	}

	// Stores
	stored, err := stores.measurements.GetByRunID(ctx, result.RunID)
	if err != nil {
		t.Fatalf("get measurements: %v", err)
	}
	if len(stored) != 6 {
		t.Errorf("expected 6 stored measurements, got %d", len(stored))
	}
	classes, err := stores.classifications.GetByRunID(ctx, result.RunID)
	if err != nil {
		t.Fatalf("get classifications: %v", err)
	}
	if len(classes) != 2 {
		t.Fatalf("expected 2 stored classifications, got %d", len(classes))
	}
	if classes[1].CatalogID != 200 || classes[1].Class != domain.ClassPermanentDecay {
		t.Errorf("unexpected classification %+v", classes[1])
	}

	run, err := stores.runs.GetByID(ctx, result.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.ConfigSignature != "sig-test" || run.Traces != 2 || run.Windows != 1 {
		t.Errorf("unexpected run record %+v", run)
	}
	if run.SkipsByReason["dropped_"+string(normalization.DropTooFewSamples)] != 1 {
		t.Errorf("run skips = %v", run.SkipsByReason)
	}

	windows, err := stores.windows.GetByLabel(ctx, "storm")
	if err != nil {
		t.Fatalf("get windows: %v", err)
	}
	if len(windows) != 1 {
		t.Errorf("expected 1 stored window, got %d", len(windows))
	}
}

func TestOrchestrator_Run_IsRepeatable(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	seedFleet(t, stores)

	first, err := newTestOrchestrator(t, stores, 1).Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := newTestOrchestrator(t, stores, 4).Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first.RunID == second.RunID {
		t.Fatal("runs share an id")
	}
	if len(first.Measurements) != len(second.Measurements) {
		t.Fatalf("row count differs: %d vs %d", len(first.Measurements), len(second.Measurements))
	}
	for i := range first.Measurements {
		a, b := first.Measurements[i], second.Measurements[i]
		if a.CatalogID != b.CatalogID || a.OffsetDays != b.OffsetDays || a.DeviationKM != b.DeviationKM {
			t.Errorf("row %d differs between worker counts", i)
		}
	}

	runs, err := stores.runs.GetAll(ctx)
	if err != nil {
		t.Fatalf("get runs: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestOrchestrator_Run_GrownIndexStoresNewWindows(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	seedFleet(t, stores)

	first, err := newTestOrchestrator(t, stores, 2).Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	// 20 more days of index with a second storm on day 70.
	second := origin.Add(70 * 24 * time.Hour)
	var more []*domain.IndexSample
	for h := 60 * 24; h < 80*24; h++ {
		ts := origin.Add(time.Duration(h) * time.Hour)
		v := -10.0
		if !ts.Before(second) && ts.Before(second.Add(6*time.Hour)) {
			v = -200
		}
		more = append(more, &domain.IndexSample{Time: ts, NanoTesla: v})
	}
	if err := stores.index.InsertBulk(ctx, more); err != nil {
		t.Fatalf("insert more index: %v", err)
	}

	result, err := newTestOrchestrator(t, stores, 2).Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(result.Windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(result.Windows))
	}

	stored, err := stores.windows.GetByRunID(ctx, result.RunID)
	if err != nil {
		t.Fatalf("get windows: %v", err)
	}
	if len(stored) != len(result.Windows) {
		t.Fatalf("run derived %d windows, store holds %d", len(result.Windows), len(stored))
	}
	if !stored[1].Start.Equal(second) || stored[1].ID == "" {
		t.Errorf("second window = %+v", stored[1])
	}
	if stored[0].ID != first.Windows[0].ID {
		t.Errorf("same window got a different id across runs")
	}

	earlier, _ := stores.windows.GetByRunID(ctx, first.RunID)
	if len(earlier) != 1 {
		t.Errorf("first run windows = %d, want 1", len(earlier))
	}
}

func TestOrchestrator_Run_NoIndex(t *testing.T) {
	stores := createTestStores()
	_, err := newTestOrchestrator(t, stores, 1).Run(context.Background())
	if !errors.Is(err, ErrNoIndex) {
		t.Fatalf("expected ErrNoIndex, got %v", err)
	}
}

func TestOrchestrator_Run_NoEntities(t *testing.T) {
	stores := createTestStores()
	seedIndex(t, stores)

	result, err := newTestOrchestrator(t, stores, 2).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Entities != 0 || result.Traces != 0 {
		t.Errorf("expected empty run, got %d entities, %d traces", result.Entities, result.Traces)
	}
}

func TestOrchestrator_Run_Cancelled(t *testing.T) {
	stores := createTestStores()
	seedFleet(t, stores)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestOrchestrator(t, stores, 2).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	stores := createTestStores()
	base := Options{
		IndexStore:          stores.index,
		ElementStore:        stores.elements,
		MeasurementStore:    stores.measurements,
		ClassificationStore: stores.classifications,
		Normalizer:          normalization.NewRunner(stores.elements, nil, normalization.DefaultRules(), nil, nil),
		WindowSets:          []window.Set{{Label: "storm", Mode: domain.ModeAbove, Threshold: 100}},
		Measure:             measure.DefaultConfig(),
	}

	if _, err := New(base); err != nil {
		t.Fatalf("valid options rejected: %v", err)
	}

	noStores := base
	noStores.MeasurementStore = nil
	if _, err := New(noStores); err == nil {
		t.Error("expected error without measurement store")
	}

	noSets := base
	noSets.WindowSets = nil
	if _, err := New(noSets); err == nil {
		t.Error("expected error without window sets")
	}

	badMode := base
	badMode.WindowSets = []window.Set{{Label: "x", Mode: "sideways"}}
	if _, err := New(badMode); !errors.Is(err, window.ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}

	badMeasure := base
	badMeasure.Measure = measure.Config{}
	if _, err := New(badMeasure); err == nil {
		t.Error("expected error for empty measure config")
	}
}
