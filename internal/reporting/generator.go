package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/metrics"
	"storm-decay-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	runStore            storage.RunStore
	windowStore         storage.WindowStore
	measurementStore    storage.MeasurementStore
	classificationStore storage.ClassificationStore
	now                 func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	runStore storage.RunStore,
	windowStore storage.WindowStore,
	measurementStore storage.MeasurementStore,
	classificationStore storage.ClassificationStore,
) *Generator {
	return &Generator{
		runStore:            runStore,
		windowStore:         windowStore,
		measurementStore:    measurementStore,
		classificationStore: classificationStore,
		now:                 func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces the report of runID. Returns storage.ErrNotFound if the
// run is unknown.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	rows, err := g.measurementStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load measurements: %w", err)
	}
	classes, err := g.classificationStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load classifications: %w", err)
	}
	windows, err := g.windowStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load windows: %w", err)
	}

	return Build(g.now(), run, windows, rows, classes), nil
}

// Build assembles a report from already loaded data.
func Build(
	generatedAt time.Time,
	run *domain.RunRecord,
	windows []*domain.EventWindow,
	rows []*domain.MeasurementRow,
	classes []*domain.ClassificationRow,
) *Report {
	r := &Report{
		GeneratedAt:     generatedAt,
		WindowSets:      windowSetRows(windows),
		Classes:         classRows(classes),
		Offsets:         offsetRows(rows),
		Events:          metrics.Aggregate(rows, classes),
		CDFs:            metrics.DeviationCDFs(rows),
		Windows:         windows,
		Measurements:    rows,
		Classifications: classes,
	}
	if run != nil {
		r.Run = RunSummary{
			RunID:           run.RunID,
			StartedAt:       run.StartedAt,
			FinishedAt:      run.FinishedAt,
			Entities:        run.Entities,
			Windows:         run.Windows,
			Traces:          run.Traces,
			ConfigSignature: run.ConfigSignature,
		}
		r.Skips = countRows(run.SkipsByReason)
	}
	return r
}

func countRows(counts map[string]int) []CountRow {
	out := make([]CountRow, 0, len(counts))
	for name, n := range counts {
		out = append(out, CountRow{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// windowSetRows groups windows by label.
func windowSetRows(windows []*domain.EventWindow) []WindowSetRow {
	byLabel := make(map[string][]*domain.EventWindow)
	for _, w := range windows {
		byLabel[w.Label] = append(byLabel[w.Label], w)
	}

	out := make([]WindowSetRow, 0, len(byLabel))
	for label, ws := range byLabel {
		row := WindowSetRow{
			Label:      label,
			Mode:       ws[0].Mode,
			Threshold:  ws[0].Threshold,
			Percentile: ws[0].Percentile,
			Windows:    len(ws),
		}
		hours := make([]float64, len(ws))
		for i, w := range ws {
			hours[i] = w.Duration.Hours()
			if w.Duration > row.LongestDuration {
				row.LongestDuration = w.Duration
			}
		}
		if m, ok := metrics.Median(hours); ok {
			row.MedianDuration = time.Duration(m * float64(time.Hour))
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// classRows counts classes per window set. Every class is listed for every
// set that has at least one trace.
func classRows(classes []*domain.ClassificationRow) []ClassRow {
	counts := make(map[string]map[domain.Classification]int)
	totals := make(map[string]int)
	for _, c := range classes {
		if counts[c.WindowLabel] == nil {
			counts[c.WindowLabel] = make(map[domain.Classification]int)
		}
		counts[c.WindowLabel][c.Class]++
		totals[c.WindowLabel]++
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make([]ClassRow, 0, len(labels)*len(domain.AllClassifications))
	for _, label := range labels {
		for _, class := range domain.AllClassifications {
			n := counts[label][class]
			out = append(out, ClassRow{
				WindowLabel: label,
				Class:       class,
				Count:       n,
				Share:       float64(n) / float64(totals[label]),
			})
		}
	}
	return out
}

// offsetRows pools trace points per (label, offset).
func offsetRows(rows []*domain.MeasurementRow) []OffsetRow {
	type key struct {
		label  string
		offset int
	}
	type acc struct {
		row    OffsetRow
		values []float64
	}

	groups := make(map[key]*acc)
	for _, r := range rows {
		k := key{r.WindowLabel, r.OffsetDays}
		a, ok := groups[k]
		if !ok {
			a = &acc{row: OffsetRow{WindowLabel: r.WindowLabel, OffsetDays: r.OffsetDays}}
			groups[k] = a
		}
		switch r.Status {
		case domain.DeviationObserved:
			a.row.Observed++
			a.values = append(a.values, r.DeviationKM)
		case domain.DeviationVanished:
			a.row.Vanished++
		default:
			a.row.Invalid++
		}
	}

	out := make([]OffsetRow, 0, len(groups))
	for _, a := range groups {
		if m, ok := metrics.Median(a.values); ok {
			a.row.MedianKM = m
		}
		if p, err := metrics.Percentile(a.values, 90); err == nil {
			a.row.P90KM = p
		}
		if m, ok := metrics.Max(a.values); ok {
			a.row.MaxKM = m
		}
		out = append(out, a.row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WindowLabel != out[j].WindowLabel {
			return out[i].WindowLabel < out[j].WindowLabel
		}
		return out[i].OffsetDays < out[j].OffsetDays
	})
	return out
}
