package domain

import "time"

// MeasurementRow is one emitted trace point.
// Corresponds to measurements table in ClickHouse.
// Rows are append-only; re-runs are told apart by RunID.
type MeasurementRow struct {
	RunID           string          // pipeline run identifier
	WindowLabel     string          // window set label
	EventStart      time.Time       // window start the trace was anchored on
	EventEnd        time.Time       // window end
	CatalogID       int             // NORAD catalog number
	LaunchDate      time.Time       // launch date
	OffsetDays      int             // days after event start
	Status          DeviationStatus // observed, vanished or invalid
	DeviationKM     float64         // |baseline - altitude|, 0 unless observed
	BaselineKM      float64         // median pre-event altitude
	AnchorEpoch     time.Time       // last sample before event
	AnchorKM        float64         // altitude of that sample
	SampleEpoch     *time.Time      // first sample after target, nil when vanished
	MaxDrag         *float64        // max |drag| between anchor and sample
	PeakDeviationKM *float64        // max deviation between anchor and sample
	IndexNT         *float64        // max index magnitude on target day
}

// ClassificationRow is one emitted classification of a trace.
// Corresponds to classifications table in PostgreSQL.
type ClassificationRow struct {
	RunID        string         // pipeline run identifier
	WindowLabel  string         // window set label
	EventStart   time.Time      // window start
	CatalogID    int            // NORAD catalog number
	Class        Classification // assigned class
	UsablePoints int            // points left after the vanished policy
	FirstKM      float64        // first usable deviation
	LastKM       float64        // last usable deviation
	MedianKM     float64        // median usable deviation
	MaxKM        float64        // max usable deviation
	CreatedAt    time.Time      // set by the store
}

// RunRecord describes one pipeline run.
// Corresponds to pipeline_runs table in PostgreSQL.
type RunRecord struct {
	RunID           string
	StartedAt       time.Time
	FinishedAt      time.Time
	Entities        int
	Windows         int
	Traces          int
	SkipsByReason   map[string]int
	Classes         map[Classification]int
	ConfigSignature string // sha256 of the effective configuration
}
