// Package measure computes post-event altitude deviation traces.
package measure

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/lookup"
	"storm-decay-lab/internal/metrics"
	"storm-decay-lab/internal/timeseries"
)

// Soft outcomes of Measure. Callers count them and move on.
var (
	ErrMissingBaseline = errors.New("no usable altitude before event")
	ErrAlreadyDrifting = errors.New("altitude already off baseline before event")
	ErrMalformedSeries = errors.New("malformed entity series")
)

// DefaultDecayGuardKM is the anchor-to-baseline distance at which an entity
// is considered to be decaying already.
const DefaultDecayGuardKM = 5.0

const day = 24 * time.Hour

// Config controls trace measurement.
type Config struct {
	OffsetsDays   []int   // day offsets after event start, non-negative
	DecayGuardKM  float64 // |baseline - anchor| >= guard rejects the entity
	IncludeAnchor bool    // prepend offset 0 holding |baseline - anchor|
}

// DefaultConfig returns offsets 1, 5 and 10 days with the default guard.
func DefaultConfig() Config {
	return Config{
		OffsetsDays:  []int{1, 5, 10},
		DecayGuardKM: DefaultDecayGuardKM,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.OffsetsDays) == 0 {
		return errors.New("measure: no offsets configured")
	}
	for _, d := range c.OffsetsDays {
		if d < 0 {
			return fmt.Errorf("measure: negative offset %d", d)
		}
	}
	if c.DecayGuardKM <= 0 || math.IsNaN(c.DecayGuardKM) {
		return fmt.Errorf("measure: decay guard must be positive, got %v", c.DecayGuardKM)
	}
	return nil
}

// Measurer measures traces for entities against event instants.
// It is safe for concurrent use; all inputs are read-only.
type Measurer struct {
	offsets       []int
	guard         float64
	includeAnchor bool
	index         *timeseries.Series
}

// New creates a Measurer.
func New(cfg Config) (*Measurer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	offsets := make([]int, len(cfg.OffsetsDays))
	copy(offsets, cfg.OffsetsDays)
	sort.Ints(offsets)

	return &Measurer{
		offsets:       offsets,
		guard:         cfg.DecayGuardKM,
		includeAnchor: cfg.IncludeAnchor,
	}, nil
}

// WithIndex returns a Measurer that annotates every point with the largest
// index magnitude observed during the UTC day of its target instant.
func (m *Measurer) WithIndex(index timeseries.Series) *Measurer {
	cp := *m
	magnitude := index.Map(math.Abs)
	cp.index = &magnitude
	return &cp
}

// Offsets returns the configured offsets in ascending order.
func (m *Measurer) Offsets() []int {
	out := make([]int, len(m.offsets))
	copy(out, m.offsets)
	return out
}

// Measure builds the deviation trace of e after event.
//
// The baseline is the median altitude of every sample strictly before event,
// the anchor the last such sample. Each offset d observes the first sample
// strictly after event + d days.
func (m *Measurer) Measure(e *timeseries.Entity, event time.Time) (*domain.Trace, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil entity", ErrMalformedSeries)
	}
	if e.Drag.Len() != 0 && e.Drag.Len() != e.Altitude.Len() {
		return nil, fmt.Errorf("%w: catalog %d has %d altitude and %d drag samples",
			ErrMalformedSeries, e.CatalogID, e.Altitude.Len(), e.Drag.Len())
	}

	before := lookup.Before(e.Altitude, event)
	baseline, ok := metrics.Median(before.Values())
	if !ok {
		return nil, fmt.Errorf("catalog %d: %w", e.CatalogID, ErrMissingBaseline)
	}

	anchor, ok := lookup.LastBefore(e.Altitude, event)
	if !ok || math.IsNaN(anchor.Value) {
		return nil, fmt.Errorf("catalog %d: anchor undefined: %w", e.CatalogID, ErrMissingBaseline)
	}

	if math.Abs(baseline-anchor.Value) >= m.guard {
		return nil, fmt.Errorf("catalog %d: anchor %.3f km vs baseline %.3f km: %w",
			e.CatalogID, anchor.Value, baseline, ErrAlreadyDrifting)
	}

	trace := &domain.Trace{
		CatalogID:   e.CatalogID,
		LaunchDate:  e.LaunchDate,
		EventStart:  event,
		BaselineKM:  baseline,
		AnchorEpoch: anchor.Time,
		AnchorKM:    anchor.Value,
		Points:      make([]domain.TracePoint, 0, len(m.offsets)+1),
	}

	if m.includeAnchor {
		trace.Points = append(trace.Points, domain.TracePoint{
			OffsetDays:  0,
			Target:      event,
			Deviation:   domain.Observed(math.Abs(baseline - anchor.Value)),
			SampleEpoch: anchor.Time,
			IndexNT:     m.dailyIndexMax(event),
		})
	}

	for _, d := range m.offsets {
		trace.Points = append(trace.Points, m.observe(e, baseline, anchor, event.Add(time.Duration(d)*day), d))
	}

	return trace, nil
}

// observe measures the point at offset d whose target instant is target.
func (m *Measurer) observe(e *timeseries.Entity, baseline float64, anchor domain.Sample, target time.Time, d int) domain.TracePoint {
	p := domain.TracePoint{
		OffsetDays: d,
		Target:     target,
		IndexNT:    m.dailyIndexMax(target),
	}

	sample, ok := lookup.FirstAfter(e.Altitude, target)
	if !ok {
		p.Deviation = domain.Vanished()
		return p
	}
	p.SampleEpoch = sample.Time

	if math.IsNaN(sample.Value) {
		p.Deviation = domain.Invalid()
	} else {
		p.Deviation = domain.Observed(math.Abs(baseline - sample.Value))
	}

	if e.Drag.Len() > 0 {
		p.MaxDrag = maxAbs(lookup.Strictly(e.Drag, anchor.Time, sample.Time).Values(), 0)
	}
	p.PeakDeviationKM = maxAbs(lookup.Between(e.Altitude, anchor.Time, sample.Time).Values(), baseline)

	return p
}

// dailyIndexMax returns the largest index magnitude within t's UTC day.
func (m *Measurer) dailyIndexMax(t time.Time) *float64 {
	if m.index == nil {
		return nil
	}
	start := t.UTC().Truncate(day)
	return maxAbs(lookup.Between(*m.index, start, start.Add(day-time.Nanosecond)).Values(), 0)
}

// maxAbs returns max |v - ref| over values, nil when none is defined.
func maxAbs(values []float64, ref float64) *float64 {
	deltas := make([]float64, 0, len(values))
	for _, v := range values {
		deltas = append(deltas, math.Abs(v-ref))
	}
	m, ok := metrics.Max(deltas)
	if !ok {
		return nil
	}
	return &m
}
