package reporting

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/metrics"
	"storm-decay-lab/internal/tracking"
)

const csvTimeLayout = "2006-01-02 15:04:05"

// WriteWindowsCSV writes event windows.
func WriteWindowsCSV(w io.Writer, windows []*domain.EventWindow) error {
	header := []string{"label", "mode", "percentile", "threshold", "start", "end", "duration_hours", "window_id"}
	return writeCSV(w, header, len(windows), func(i int) []string {
		win := windows[i]
		return []string{
			win.Label,
			string(win.Mode),
			formatFloat(win.Percentile),
			formatFloat(win.Threshold),
			win.Start.UTC().Format(csvTimeLayout),
			win.End.UTC().Format(csvTimeLayout),
			formatFloat(win.Duration.Hours()),
			win.ID,
		}
	})
}

// WriteMeasurementsCSV writes trace points. Undefined optional values are
// empty cells.
func WriteMeasurementsCSV(w io.Writer, rows []*domain.MeasurementRow) error {
	header := []string{
		"run_id", "window_label", "event_start", "event_end", "catalog_id", "launch_date",
		"offset_days", "status", "deviation_km", "baseline_km", "anchor_epoch", "anchor_km",
		"sample_epoch", "max_drag", "peak_deviation_km", "index_nt",
	}
	return writeCSV(w, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.RunID,
			r.WindowLabel,
			r.EventStart.UTC().Format(csvTimeLayout),
			r.EventEnd.UTC().Format(csvTimeLayout),
			strconv.Itoa(r.CatalogID),
			formatDate(r.LaunchDate),
			strconv.Itoa(r.OffsetDays),
			string(r.Status),
			formatFloat(r.DeviationKM),
			formatFloat(r.BaselineKM),
			r.AnchorEpoch.UTC().Format(csvTimeLayout),
			formatFloat(r.AnchorKM),
			formatTimePtr(r.SampleEpoch),
			formatFloatPtr(r.MaxDrag),
			formatFloatPtr(r.PeakDeviationKM),
			formatFloatPtr(r.IndexNT),
		}
	})
}

// WriteClassificationsCSV writes classified traces.
func WriteClassificationsCSV(w io.Writer, rows []*domain.ClassificationRow) error {
	header := []string{
		"run_id", "window_label", "event_start", "catalog_id", "class",
		"usable_points", "first_km", "last_km", "median_km", "max_km",
	}
	return writeCSV(w, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.RunID,
			r.WindowLabel,
			r.EventStart.UTC().Format(csvTimeLayout),
			strconv.Itoa(r.CatalogID),
			string(r.Class),
			strconv.Itoa(r.UsablePoints),
			formatFloat(r.FirstKM),
			formatFloat(r.LastKM),
			formatFloat(r.MedianKM),
			formatFloat(r.MaxKM),
		}
	})
}

// WriteEventAggregatesCSV writes one row per (event, offset).
func WriteEventAggregatesCSV(w io.Writer, aggs []*domain.EventAggregate) error {
	type line struct {
		agg *domain.EventAggregate
		off domain.OffsetStats
	}
	var lines []line
	for _, a := range aggs {
		for _, o := range a.Offsets {
			lines = append(lines, line{a, o})
		}
	}

	header := []string{
		"run_id", "window_label", "event_start", "event_end", "entities",
		"no_impact", "station_keeping", "permanent_decay", "undecidable",
		"offset_days", "observed", "vanished", "invalid", "median_km", "p90_km", "max_km",
	}
	return writeCSV(w, header, len(lines), func(i int) []string {
		a, o := lines[i].agg, lines[i].off
		return []string{
			a.RunID,
			a.WindowLabel,
			a.EventStart.UTC().Format(csvTimeLayout),
			a.EventEnd.UTC().Format(csvTimeLayout),
			strconv.Itoa(a.Entities),
			strconv.Itoa(a.Classes[domain.ClassNoImpact]),
			strconv.Itoa(a.Classes[domain.ClassStationKeeping]),
			strconv.Itoa(a.Classes[domain.ClassPermanentDecay]),
			strconv.Itoa(a.Classes[domain.ClassUndecidable]),
			strconv.Itoa(o.OffsetDays),
			strconv.Itoa(o.Observed),
			strconv.Itoa(o.Vanished),
			strconv.Itoa(o.Invalid),
			formatFloat(o.MedianKM),
			formatFloat(o.P90KM),
			formatFloat(o.MaxKM),
		}
	})
}

// WriteCDFCSV writes deviation distributions, one row per step.
func WriteCDFCSV(w io.Writer, cdfs []metrics.OffsetCDF) error {
	type line struct {
		cdf   *metrics.OffsetCDF
		point metrics.CDFPoint
	}
	var lines []line
	for i := range cdfs {
		for _, p := range cdfs[i].Points {
			lines = append(lines, line{&cdfs[i], p})
		}
	}

	header := []string{"window_label", "offset_days", "deviation_km", "fraction"}
	return writeCSV(w, header, len(lines), func(i int) []string {
		l := lines[i]
		return []string{
			l.cdf.WindowLabel,
			strconv.Itoa(l.cdf.OffsetDays),
			formatFloat(l.point.Value),
			formatFloat(l.point.Fraction),
		}
	})
}

// WriteTrackingCSV writes daily tracking insights.
func WriteTrackingCSV(w io.Writer, days []tracking.DayInsight) error {
	header := []string{"day", "element_sets", "satellites", "max_abs_drag", "positive_drag"}
	return writeCSV(w, header, len(days), func(i int) []string {
		d := days[i]
		return []string{
			formatDate(d.Day),
			strconv.Itoa(d.ElementSets),
			strconv.Itoa(d.Satellites),
			formatFloat(d.MaxAbsDrag),
			strconv.Itoa(d.PositiveDrag),
		}
	})
}

func writeCSV(w io.Writer, header []string, n int, row func(int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(csvTimeLayout)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
