package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"storm-decay-lab/internal/classify"
	"storm-decay-lab/internal/config"
	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/measure"
	"storm-decay-lab/internal/normalization"
	"storm-decay-lab/internal/orchestrator"
	"storm-decay-lab/internal/reporting"
	"storm-decay-lab/internal/stores"
	"storm-decay-lab/internal/window"
)

var (
	origin    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	event     = origin.Add(30 * 24 * time.Hour)
	fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

// seed stores 60 days of hourly index with one storm at event, a steady
// satellite and one decaying after the event.
func seed(t *testing.T, st *stores.Stores) {
	t.Helper()
	ctx := context.Background()

	var samples []*domain.IndexSample
	for h := 0; h < 60*24; h++ {
		ts := origin.Add(time.Duration(h) * time.Hour)
		v := -10.0
		if !ts.Before(event) && ts.Before(event.Add(6*time.Hour)) {
			v = -200
		}
		samples = append(samples, &domain.IndexSample{Time: ts, NanoTesla: v})
	}
	if err := st.Index.InsertBulk(ctx, samples); err != nil {
		t.Fatalf("insert index: %v", err)
	}

	for _, id := range []int{100, 200} {
		var elems []*domain.ElementSample
		for d := 0; d < 60; d++ {
			epoch := origin.Add(time.Duration(d)*24*time.Hour + 12*time.Hour)
			km := 550.0
			if id == 200 && epoch.After(event) {
				km -= epoch.Sub(event).Hours() / 24
			}
			elems = append(elems, &domain.ElementSample{
				CatalogID:  id,
				LaunchDate: origin,
				Epoch:      epoch,
				AltitudeKM: km,
				Drag:       1e-4,
			})
		}
		if err := st.Element.InsertBulk(ctx, elems); err != nil {
			t.Fatalf("insert elements: %v", err)
		}
	}
}

func newOrchestrator(t *testing.T, st *stores.Stores, sets []window.Set) *orchestrator.Orchestrator {
	t.Helper()
	orch, err := orchestrator.New(orchestrator.Options{
		IndexStore:          st.Index,
		ElementStore:        st.Element,
		MeasurementStore:    st.Measurement,
		ClassificationStore: st.Classification,
		WindowStore:         st.Window,
		RunStore:            st.Run,
		Normalizer:          normalization.NewRunner(st.Element, st.Satellite, normalization.DefaultRules(), nil, nil),
		WindowSets:          sets,
		Measure:             measure.DefaultConfig(),
		VanishedPolicy:      classify.VanishedExclude,
		Magnitude:           true,
		Workers:             2,
	})
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	return orch
}

func stormSet() window.Set {
	return window.Set{Label: "storm", Mode: domain.ModeAbove, Threshold: 100, MergeGap: 10 * 24 * time.Hour}
}

func TestPipeline_Run(t *testing.T) {
	ctx := context.Background()
	st := stores.Memory()
	seed(t, st)
	dir := t.TempDir()

	p := New(newOrchestrator(t, st, []window.Set{stormSet()}), st, dir).
		WithClock(func() time.Time { return fixedTime }).
		WithSufficiencyChecker(NewSufficiencyChecker(st.Index, []string{"storm"})).
		WithWriteOptions(reporting.WriteOptions{Parquet: true}).
		WithTracking(3)

	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Run.Traces != 2 {
		t.Errorf("expected 2 traces, got %d", res.Run.Traces)
	}
	if res.Sufficiency == nil || !res.Sufficiency.AllPass {
		t.Errorf("expected all sufficiency checks to pass: %+v", res.Sufficiency)
	}
	if len(res.Report.Tracking) != 4 {
		t.Errorf("expected 4 tracking days, got %d", len(res.Report.Tracking))
	}
	if len(res.Uploaded) != 0 {
		t.Errorf("no uploader configured, got %v", res.Uploaded)
	}

	for _, name := range []string{
		reporting.FileReport,
		reporting.FileMeasurements,
		reporting.FileClassifications,
		reporting.FileTracking,
		reporting.FileParquet,
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	md, err := os.ReadFile(filepath.Join(dir, reporting.FileReport))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	for _, want := range []string{
		"Generated: 2024-03-01T12:00:00Z",
		"| Run ID | " + res.Run.RunID + " |",
		"## Data Quality",
		"Overall: **PASS**",
		"| storm | permanent_decay | 1 | 0.5000 |",
		"## Daily Tracking",
	} {
		if !strings.Contains(string(md), want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestPipeline_InsufficientData(t *testing.T) {
	ctx := context.Background()
	st := stores.Memory()
	seed(t, st)

	// The index magnitude never drops below 5 nT, so the quiet set yields no windows.
	quiet := window.Set{Label: "quiet", Mode: domain.ModeBelow, Threshold: 5, MergeGap: 10 * 24 * time.Hour}
	sets := []window.Set{stormSet(), quiet}

	p := New(newOrchestrator(t, st, sets), st, t.TempDir()).
		WithSufficiencyChecker(NewSufficiencyChecker(st.Index, []string{"storm", "quiet"}))

	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Sufficiency.AllPass {
		t.Fatal("expected failed sufficiency")
	}
	if len(res.Sufficiency.Errors) != 1 || res.Sufficiency.Errors[0] != "window set quiet produced no windows" {
		t.Errorf("errors = %v", res.Sufficiency.Errors)
	}
	if res.Report.DataQuality == nil || res.Report.DataQuality.AllChecksPassed {
		t.Error("report should carry the failed checks")
	}
}

type failingRunner struct{ err error }

func (f failingRunner) Run(context.Context) (*orchestrator.RunResult, error) { return nil, f.err }

func TestPipeline_RunnerError(t *testing.T) {
	boom := errors.New("boom")
	dir := filepath.Join(t.TempDir(), "out")

	_, err := New(failingRunner{boom}, stores.Memory(), dir).Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected runner error, got %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("no output expected after a failed run")
	}
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()
	st := stores.Memory()
	seed(t, st)

	cfg := config.Default()
	cfg.Pipeline.OutputDir = t.TempDir()
	cfg.Pipeline.Workers = 2
	cfg.Pipeline.TrackingDays = 0

	p, err := FromConfig(ctx, cfg, st, nil)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	res, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want, err := cfg.Signature()
	if err != nil {
		t.Fatalf("Signature: %v", err)
	}
	if res.Report.Run.ConfigSignature != want {
		t.Errorf("signature = %q, want %q", res.Report.Run.ConfigSignature, want)
	}
	if len(res.Report.Tracking) != 0 {
		t.Error("tracking disabled")
	}
	if _, err := os.Stat(filepath.Join(cfg.Pipeline.OutputDir, reporting.FileParquet)); !os.IsNotExist(err) {
		t.Error("parquet disabled by default")
	}
}

func TestFromConfig_BadOrbitRaisePath(t *testing.T) {
	cfg := config.Default()
	cfg.Ingest.OrbitRaisePath = filepath.Join(t.TempDir(), "missing.csv")
	if _, err := FromConfig(context.Background(), cfg, stores.Memory(), nil); err == nil {
		t.Fatal("expected error")
	}
}
