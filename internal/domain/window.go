package domain

import "time"

// ThresholdMode selects which side of the threshold opens a window.
type ThresholdMode string

const (
	ModeAbove ThresholdMode = "above" // value > threshold opens, value < threshold closes
	ModeBelow ThresholdMode = "below" // value < threshold opens, value > threshold closes
)

// Valid reports whether m is a known mode.
func (m ThresholdMode) Valid() bool {
	return m == ModeAbove || m == ModeBelow
}

// Window is an interval [Start, End) during which a threshold predicate held.
// Duration is zero until the window has been annotated by Merge or Annotate.
type Window struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// Span returns End - Start regardless of annotation.
func (w Window) Span() time.Duration {
	return w.End.Sub(w.Start)
}

// EventWindow is a merged window tagged with the window set it belongs to.
// Corresponds to event_windows table in PostgreSQL, one row per run.
type EventWindow struct {
	RunID      string        // run that derived the window, empty until stored
	ID         string        // SHA256(label|start|end), stable across runs
	Label      string        // window set label, e.g. "storm_p99"
	Start      time.Time     // window start
	End        time.Time     // window end
	Duration   time.Duration // End - Start
	Threshold  float64       // threshold the set was extracted with (nT magnitude)
	Percentile float64       // percentile the threshold was derived from, 0 when fixed
	Mode       ThresholdMode // extraction mode
}

// Window returns the untagged window.
func (e *EventWindow) Window() Window {
	return Window{Start: e.Start, End: e.End, Duration: e.Duration}
}
