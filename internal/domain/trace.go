package domain

import "time"

// DeviationStatus is the state of a single post-event observation.
type DeviationStatus string

const (
	DeviationObserved DeviationStatus = "observed" // a sample exists after the target instant
	DeviationVanished DeviationStatus = "vanished" // no sample after the target instant
	DeviationInvalid  DeviationStatus = "invalid"  // a sample exists but its value is undefined
)

// Deviation is the absolute altitude change from baseline at one offset.
// KM is meaningful only when Status is DeviationObserved.
type Deviation struct {
	Status DeviationStatus
	KM     float64
}

// Observed returns an observed deviation of km.
func Observed(km float64) Deviation {
	return Deviation{Status: DeviationObserved, KM: km}
}

// Vanished returns a deviation for an entity with no further samples.
func Vanished() Deviation {
	return Deviation{Status: DeviationVanished}
}

// Invalid returns a deviation whose sample carried no usable value.
func Invalid() Deviation {
	return Deviation{Status: DeviationInvalid}
}

// IsObserved reports whether KM carries a measured value.
func (d Deviation) IsObserved() bool {
	return d.Status == DeviationObserved
}

// TracePoint is the observation at one day offset after an event.
type TracePoint struct {
	OffsetDays      int       // days after event start
	Target          time.Time // event start + offset
	Deviation       Deviation // |baseline - altitude| of the first sample after Target
	SampleEpoch     time.Time // epoch of that sample, zero when vanished
	MaxDrag         *float64  // max |drag| strictly between anchor and sample
	PeakDeviationKM *float64  // max |baseline - altitude| over [anchor, sample]
	IndexNT         *float64  // max index magnitude during Target's UTC day
}

// Trace is the post-event deviation trace of one entity for one event.
type Trace struct {
	CatalogID   int
	LaunchDate  time.Time
	EventStart  time.Time
	BaselineKM  float64   // median altitude of all samples before the event
	AnchorEpoch time.Time // last sample strictly before the event
	AnchorKM    float64
	Points      []TracePoint // ordered by OffsetDays
}
