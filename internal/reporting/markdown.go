package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Storm Decay Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Run
	sb.WriteString("## Run\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Run ID | %s |\n", r.Run.RunID))
	sb.WriteString(fmt.Sprintf("| Started | %s |\n", formatTime(r.Run.StartedAt)))
	sb.WriteString(fmt.Sprintf("| Finished | %s |\n", formatTime(r.Run.FinishedAt)))
	sb.WriteString(fmt.Sprintf("| Entities | %d |\n", r.Run.Entities))
	sb.WriteString(fmt.Sprintf("| Windows | %d |\n", r.Run.Windows))
	sb.WriteString(fmt.Sprintf("| Traces | %d |\n", r.Run.Traces))
	sb.WriteString(fmt.Sprintf("| Config Signature | %s |\n", r.Run.ConfigSignature))
	sb.WriteString("\n")

	// Skips
	sb.WriteString("## Skips\n\n")
	if len(r.Skips) > 0 {
		sb.WriteString("| Reason | Count |\n")
		sb.WriteString("|--------|-------|\n")
		for _, s := range r.Skips {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", s.Name, s.Count))
		}
	} else {
		sb.WriteString("No pairs skipped.\n")
	}
	sb.WriteString("\n")

	// Window sets
	sb.WriteString("## Window Sets\n\n")
	if len(r.WindowSets) > 0 {
		sb.WriteString("| Label | Mode | Percentile | Threshold (nT) | Windows | Median Duration | Longest |\n")
		sb.WriteString("|-------|------|------------|----------------|---------|-----------------|---------|\n")
		for _, w := range r.WindowSets {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.1f | %.2f | %d | %s | %s |\n",
				w.Label, w.Mode, w.Percentile, w.Threshold, w.Windows,
				w.MedianDuration, w.LongestDuration))
		}
	} else {
		sb.WriteString("No windows derived.\n")
	}
	sb.WriteString("\n")

	// Classes
	sb.WriteString("## Classification\n\n")
	if len(r.Classes) > 0 {
		sb.WriteString("| Window Set | Class | Count | Share |\n")
		sb.WriteString("|------------|-------|-------|-------|\n")
		for _, c := range r.Classes {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.4f |\n",
				c.WindowLabel, c.Class, c.Count, c.Share))
		}
	} else {
		sb.WriteString("No traces classified.\n")
	}
	sb.WriteString("\n")

	// Offsets
	sb.WriteString("## Deviation by Offset\n\n")
	if len(r.Offsets) > 0 {
		sb.WriteString("| Window Set | Days | Observed | Vanished | Invalid | Median km | P90 km | Max km |\n")
		sb.WriteString("|------------|------|----------|----------|---------|-----------|--------|--------|\n")
		for _, o := range r.Offsets {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %.3f | %.3f | %.3f |\n",
				o.WindowLabel, o.OffsetDays, o.Observed, o.Vanished, o.Invalid,
				o.MedianKM, o.P90KM, o.MaxKM))
		}
	} else {
		sb.WriteString("No measurements available.\n")
	}
	sb.WriteString("\n")

	// Events
	sb.WriteString("## Events\n\n")
	if len(r.Events) > 0 {
		sb.WriteString("| Window Set | Start | End | Entities | no_impact | station_keeping | permanent_decay | undecidable |\n")
		sb.WriteString("|------------|-------|-----|----------|-----------|-----------------|-----------------|-------------|\n")
		for _, e := range r.Events {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d | %d | %d | %d |\n",
				e.WindowLabel, formatTime(e.EventStart), formatTime(e.EventEnd), e.Entities,
				e.Classes["no_impact"], e.Classes["station_keeping"],
				e.Classes["permanent_decay"], e.Classes["undecidable"]))
		}
	} else {
		sb.WriteString("No events measured.\n")
	}
	sb.WriteString("\n")

	// Data quality
	if dq := r.DataQuality; dq != nil {
		sb.WriteString("## Data Quality\n\n")
		status := "PASS"
		if !dq.AllChecksPassed {
			status = "FAIL"
		}
		sb.WriteString(fmt.Sprintf("Overall: **%s**\n\n", status))
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, c := range dq.SufficiencyChecks {
			status := "PASS"
			if !c.Pass {
				status = "FAIL"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.Name, c.Threshold, c.Actual, status))
		}
		sb.WriteString("\n")
		if len(dq.IntegrityErrors) > 0 {
			sb.WriteString("### Integrity Errors\n\n")
			for _, e := range dq.IntegrityErrors {
				sb.WriteString("- " + e + "\n")
			}
			sb.WriteString("\n")
		}
	}

	// Tracking
	if len(r.Tracking) > 0 {
		sb.WriteString("## Daily Tracking\n\n")
		sb.WriteString("| Day | Element Sets | Satellites | Max abs(drag) | Positive Drag |\n")
		sb.WriteString("|-----|--------------|------------|---------------|---------------|\n")
		for _, d := range r.Tracking {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.6g | %d |\n",
				d.Day.Format("2006-01-02"), d.ElementSets, d.Satellites, d.MaxAbsDrag, d.PositiveDrag))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
