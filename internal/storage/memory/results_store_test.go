package memory

import (
	"context"
	"errors"
	"testing"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

func TestWindowStore(t *testing.T) {
	store := NewWindowStore()
	ctx := context.Background()

	windows := []*domain.EventWindow{
		{RunID: "run-1", Label: "storm_p99", Start: hour(30), End: hour(40)},
		{RunID: "run-1", Label: "quiet", Start: hour(0), End: hour(400)},
		{RunID: "run-1", Label: "storm_p99", Start: hour(10), End: hour(20)},
	}
	if err := store.InsertBulk(ctx, windows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByLabel(ctx, "storm_p99")
	if err != nil {
		t.Fatalf("GetByLabel failed: %v", err)
	}
	if len(got) != 2 || !got[0].Start.Equal(hour(10)) {
		t.Errorf("GetByLabel not ordered by start")
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 3 || all[0].Label != "quiet" {
		t.Errorf("GetAll not ordered by label")
	}

	err = store.InsertBulk(ctx, []*domain.EventWindow{{RunID: "run-1", Label: "quiet", Start: hour(0), End: hour(1)}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	err = store.InsertBulk(ctx, []*domain.EventWindow{{RunID: "run-1", Label: "bad", Start: hour(5), End: hour(5)}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty window, got %v", err)
	}

	err = store.InsertBulk(ctx, []*domain.EventWindow{{Label: "storm_p99", Start: hour(50), End: hour(60)}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput without run id, got %v", err)
	}
}

func TestWindowStore_PerRun(t *testing.T) {
	store := NewWindowStore()
	ctx := context.Background()

	first := []*domain.EventWindow{
		{RunID: "run-1", Label: "storm_p99", Start: hour(10), End: hour(20)},
	}
	// A later run over a longer index sees the same window plus a new one.
	second := []*domain.EventWindow{
		{RunID: "run-2", Label: "storm_p99", Start: hour(10), End: hour(20)},
		{RunID: "run-2", Label: "storm_p99", Start: hour(500), End: hour(510)},
	}
	if err := store.InsertBulk(ctx, first); err != nil {
		t.Fatalf("InsertBulk run-1: %v", err)
	}
	if err := store.InsertBulk(ctx, second); err != nil {
		t.Fatalf("InsertBulk run-2: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 2 || !got[1].Start.Equal(hour(500)) {
		t.Errorf("GetByRunID(run-2) = %d windows", len(got))
	}
	for _, w := range got {
		if w.RunID != "run-2" {
			t.Errorf("window of %s returned for run-2", w.RunID)
		}
	}

	got, _ = store.GetByRunID(ctx, "run-1")
	if len(got) != 1 {
		t.Errorf("GetByRunID(run-1) = %d windows, want 1", len(got))
	}

	byLabel, _ := store.GetByLabel(ctx, "storm_p99")
	if len(byLabel) != 3 || byLabel[0].RunID != "run-1" || byLabel[1].RunID != "run-2" {
		t.Errorf("GetByLabel not ordered by (start, run_id)")
	}
}

func TestMeasurementStore(t *testing.T) {
	store := NewMeasurementStore()
	ctx := context.Background()

	row := func(run string, catalogID, offset int) *domain.MeasurementRow {
		return &domain.MeasurementRow{
			RunID:       run,
			WindowLabel: "storm_p99",
			EventStart:  hour(0),
			CatalogID:   catalogID,
			OffsetDays:  offset,
			Status:      domain.DeviationObserved,
		}
	}

	err := store.InsertBulk(ctx, []*domain.MeasurementRow{
		row("run-1", 200, 1), row("run-1", 100, 10), row("run-1", 100, 1), row("run-2", 100, 1),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	if got[0].CatalogID != 100 || got[0].OffsetDays != 1 || got[1].OffsetDays != 10 || got[2].CatalogID != 200 {
		t.Errorf("rows not ordered by (catalog, offset)")
	}

	// Re-running appends under a new run id, same run id collides
	if err := store.InsertBulk(ctx, []*domain.MeasurementRow{row("run-1", 100, 1)}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := store.InsertBulk(ctx, []*domain.MeasurementRow{row("", 100, 1)}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestClassificationStore(t *testing.T) {
	store := NewClassificationStore()
	ctx := context.Background()

	rows := []*domain.ClassificationRow{
		{RunID: "run-2", WindowLabel: "storm_p99", EventStart: hour(0), CatalogID: 100, Class: domain.ClassNoImpact},
		{RunID: "run-1", WindowLabel: "storm_p99", EventStart: hour(0), CatalogID: 200, Class: domain.ClassPermanentDecay},
		{RunID: "run-1", WindowLabel: "storm_p99", EventStart: hour(0), CatalogID: 100, Class: domain.ClassStationKeeping},
	}
	if err := store.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, _ := store.GetByRunID(ctx, "run-1")
	if len(got) != 2 || got[0].CatalogID != 100 {
		t.Errorf("GetByRunID unexpected order")
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	history, _ := store.GetByCatalogID(ctx, 100)
	if len(history) != 2 || history[0].RunID != "run-1" {
		t.Errorf("GetByCatalogID unexpected order")
	}

	err := store.InsertBulk(ctx, []*domain.ClassificationRow{{RunID: "run-1", WindowLabel: "storm_p99", CatalogID: 1}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing class, got %v", err)
	}
}

func TestRunStore(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.RunRecord{
		RunID:         "run-1",
		StartedAt:     hour(1),
		SkipsByReason: map[string]int{"missing_baseline": 2},
		Classes:       map[domain.Classification]int{domain.ClassNoImpact: 3},
	}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, &domain.RunRecord{RunID: "run-0", StartedAt: hour(0)}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the caller's maps must not change stored state
	run.SkipsByReason["missing_baseline"] = 100

	got, err := store.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.SkipsByReason["missing_baseline"] != 2 {
		t.Errorf("stored skip count mutated: %d", got.SkipsByReason["missing_baseline"])
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 2 || all[0].RunID != "run-0" {
		t.Errorf("GetAll not ordered by started_at")
	}

	if err := store.Insert(ctx, &domain.RunRecord{RunID: "run-1"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalogProgressStore(t *testing.T) {
	store := NewCatalogProgressStore()
	ctx := context.Background()

	if _, err := store.GetLastSync(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound before first sync, got %v", err)
	}

	if err := store.MarkKnown(ctx, []int{44714, 44713, 44714}); err != nil {
		t.Fatalf("MarkKnown failed: %v", err)
	}
	known, _ := store.LoadKnown(ctx)
	if len(known) != 2 || known[0] != 44713 {
		t.Errorf("LoadKnown = %v", known)
	}

	ok, err := store.IsKnown(ctx, 44713)
	if err != nil || !ok {
		t.Errorf("IsKnown(44713) = %v, %v", ok, err)
	}
	if _, err := store.IsKnown(ctx, 0); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	if err := store.SetLastSync(ctx, &storage.CatalogSync{SyncedAt: hour(0), Source: "starlink.tle", Total: 2}); err != nil {
		t.Fatalf("SetLastSync failed: %v", err)
	}
	last, err := store.GetLastSync(ctx)
	if err != nil || last.Source != "starlink.tle" || last.Total != 2 {
		t.Errorf("GetLastSync = %+v, %v", last, err)
	}
}
