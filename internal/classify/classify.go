// Package classify labels post-event deviation traces.
//
// Rules are evaluated in order and the first match wins; a trace matched by
// none, or with fewer than two usable points, is undecidable.
package classify

import (
	"fmt"
	"math"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/metrics"
)

// Rule thresholds in km.
const (
	// FlatToleranceKM bounds the end-to-median spread of a flat trace and the
	// minimum rise on each side of a decaying one.
	FlatToleranceKM = 0.05
	// PeakToleranceKM bounds the median-to-max spread of a flat trace.
	PeakToleranceKM = 1.0
)

// VanishedPolicy decides how points without an observed deviation enter the
// statistics.
type VanishedPolicy string

const (
	// VanishedExclude drops vanished and invalid points.
	VanishedExclude VanishedPolicy = "exclude"
	// VanishedAsZero counts vanished points as a zero deviation and drops
	// invalid ones.
	VanishedAsZero VanishedPolicy = "zero"
)

// Valid reports whether p is a known policy.
func (p VanishedPolicy) Valid() bool {
	return p == VanishedExclude || p == VanishedAsZero
}

// Summary holds the statistics rules are evaluated against.
type Summary struct {
	Points int // usable points
	First  float64
	Last   float64
	Median float64
	Max    float64
}

// Rule pairs a class with its predicate.
type Rule struct {
	Class domain.Classification
	Match func(Summary) bool
}

// DefaultRules returns the ordered rule list.
func DefaultRules() []Rule {
	return []Rule{
		{
			Class: domain.ClassNoImpact,
			Match: func(s Summary) bool {
				spread := math.Max(math.Abs(s.First-s.Median), math.Abs(s.Last-s.Median))
				return spread < FlatToleranceKM && math.Abs(s.Median-s.Max) < PeakToleranceKM
			},
		},
		{
			Class: domain.ClassStationKeeping,
			Match: func(s Summary) bool {
				return s.First < s.Median && s.Last < s.Median
			},
		},
		{
			Class: domain.ClassPermanentDecay,
			Match: func(s Summary) bool {
				return s.Median-s.First > FlatToleranceKM && s.Last-s.Median > FlatToleranceKM
			},
		},
	}
}

// Classifier applies an ordered rule list under a vanished policy.
type Classifier struct {
	rules  []Rule
	policy VanishedPolicy
}

// New creates a Classifier. With no rules given, DefaultRules is used.
func New(policy VanishedPolicy, rules ...Rule) (*Classifier, error) {
	if policy == "" {
		policy = VanishedExclude
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("unknown vanished policy %q", policy)
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules, policy: policy}, nil
}

// Policy returns the configured vanished policy.
func (c *Classifier) Policy() VanishedPolicy {
	return c.policy
}

// Classify returns the class of trace.
func (c *Classifier) Classify(trace *domain.Trace) domain.Classification {
	class, _ := c.Evaluate(trace)
	return class
}

// Evaluate returns the class of trace together with the summary it was
// decided on.
func (c *Classifier) Evaluate(trace *domain.Trace) (domain.Classification, Summary) {
	if trace == nil {
		return domain.ClassUndecidable, Summary{}
	}
	devs := make([]domain.Deviation, len(trace.Points))
	for i, p := range trace.Points {
		devs[i] = p.Deviation
	}
	return c.EvaluateDeviations(devs)
}

// EvaluateDeviations classifies deviations given in offset order.
func (c *Classifier) EvaluateDeviations(devs []domain.Deviation) (domain.Classification, Summary) {
	values := c.usable(devs)
	if len(values) < 2 {
		return domain.ClassUndecidable, Summary{Points: len(values)}
	}

	median, _ := metrics.Median(values)
	max, _ := metrics.Max(values)
	s := Summary{
		Points: len(values),
		First:  values[0],
		Last:   values[len(values)-1],
		Median: median,
		Max:    max,
	}

	for _, r := range c.rules {
		if r.Match(s) {
			return r.Class, s
		}
	}
	return domain.ClassUndecidable, s
}

// usable maps deviations to values under the vanished policy.
func (c *Classifier) usable(devs []domain.Deviation) []float64 {
	values := make([]float64, 0, len(devs))
	for _, d := range devs {
		switch d.Status {
		case domain.DeviationObserved:
			if !math.IsNaN(d.KM) {
				values = append(values, d.KM)
			}
		case domain.DeviationVanished:
			if c.policy == VanishedAsZero {
				values = append(values, 0)
			}
		}
	}
	return values
}
