package reporting

import (
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/metrics"
	"storm-decay-lab/internal/tracking"
)

// Report represents the report of one pipeline run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Run         RunSummary

	// Skipped pairs and dropped satellites, sorted by reason
	Skips []CountRow

	// Window sets (sorted by label)
	WindowSets []WindowSetRow

	// Class counts per window set (sorted by label, then rule order)
	Classes []ClassRow

	// Offset statistics pooled over the events of each window set
	Offsets []OffsetRow

	// Per-event aggregates (sorted by label, event start)
	Events []*domain.EventAggregate

	// Deviation distributions per (label, offset)
	CDFs []metrics.OffsetCDF

	// Raw rows written next to the report
	Windows         []*domain.EventWindow
	Measurements    []*domain.MeasurementRow
	Classifications []*domain.ClassificationRow

	// Optional daily tracking insight, set by the caller
	Tracking []tracking.DayInsight

	// Optional data quality checks, set by the caller
	DataQuality *DataQualitySection
}

// DataQualitySection lists sufficiency checks and integrity errors.
type DataQualitySection struct {
	SufficiencyChecks []SufficiencyCheckRow
	IntegrityErrors   []string
	AllChecksPassed   bool
}

// SufficiencyCheckRow is one data sufficiency criterion.
type SufficiencyCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// RunSummary describes the run.
type RunSummary struct {
	RunID           string
	StartedAt       time.Time
	FinishedAt      time.Time
	Entities        int
	Windows         int
	Traces          int
	ConfigSignature string
}

// CountRow is a named count.
type CountRow struct {
	Name  string
	Count int
}

// WindowSetRow summarises the windows of one set.
type WindowSetRow struct {
	Label           string
	Mode            domain.ThresholdMode
	Threshold       float64
	Percentile      float64
	Windows         int
	MedianDuration  time.Duration
	LongestDuration time.Duration
}

// ClassRow is the count of one class within one window set.
type ClassRow struct {
	WindowLabel string
	Class       domain.Classification
	Count       int
	Share       float64 // Count / traces of the set, 0 when the set has none
}

// OffsetRow pools one offset over all events of a window set.
type OffsetRow struct {
	WindowLabel string
	OffsetDays  int
	Observed    int
	Vanished    int
	Invalid     int
	MedianKM    float64
	P90KM       float64
	MaxKM       float64
}
