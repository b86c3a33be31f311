package domain

import "time"

// OffsetStats summarises all trace points of one event at one day offset.
// Deviation statistics cover observed points only and are zero when
// Observed is 0.
type OffsetStats struct {
	OffsetDays int
	Observed   int
	Vanished   int
	Invalid    int
	MedianKM   float64
	P90KM      float64
	MaxKM      float64
}

// EventAggregate is the per-event summary of one run.
type EventAggregate struct {
	RunID       string
	WindowLabel string
	EventStart  time.Time
	EventEnd    time.Time
	Entities    int                    // distinct catalog numbers with a trace
	Classes     map[Classification]int // classified traces per class
	Offsets     []OffsetStats          // ordered by OffsetDays
}
