// Package timeseries holds ordered, read-only sample series.
// Series never repair their input: construction fails on unsorted or
// duplicated timestamps, and callers clean upstream with Normalize.
package timeseries

import (
	"errors"
	"fmt"
	"sort"

	"storm-decay-lab/internal/domain"
)

// Errors returned when constructing a series.
var (
	ErrUnsorted           = errors.New("series timestamps are not increasing")
	ErrDuplicateTimestamp = errors.New("series contains a duplicate timestamp")
)

// Series is an immutable sequence of samples with strictly increasing timestamps.
// The zero value is an empty series.
type Series struct {
	samples []domain.Sample
}

// New validates samples and returns a series over a private copy.
func New(samples []domain.Sample) (Series, error) {
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1].Time, samples[i].Time
		if cur.Equal(prev) {
			return Series{}, fmt.Errorf("index %d at %s: %w", i, cur.Format("2006-01-02T15:04:05Z07:00"), ErrDuplicateTimestamp)
		}
		if cur.Before(prev) {
			return Series{}, fmt.Errorf("index %d at %s: %w", i, cur.Format("2006-01-02T15:04:05Z07:00"), ErrUnsorted)
		}
	}

	cp := make([]domain.Sample, len(samples))
	copy(cp, samples)
	return Series{samples: cp}, nil
}

// Normalize sorts samples by time and collapses equal timestamps, keeping the
// last occurrence. It is the upstream cleaning step, not part of the core.
func Normalize(samples []domain.Sample) Series {
	cp := make([]domain.Sample, len(samples))
	copy(cp, samples)
	sort.SliceStable(cp, func(i, j int) bool {
		return cp[i].Time.Before(cp[j].Time)
	})

	out := cp[:0]
	for _, s := range cp {
		if n := len(out); n > 0 && out[n-1].Time.Equal(s.Time) {
			out[n-1] = s
			continue
		}
		out = append(out, s)
	}
	return Series{samples: out}
}

// Len returns the number of samples.
func (s Series) Len() int {
	return len(s.samples)
}

// At returns the i-th sample.
func (s Series) At(i int) domain.Sample {
	return s.samples[i]
}

// First returns the earliest sample.
func (s Series) First() (domain.Sample, bool) {
	if len(s.samples) == 0 {
		return domain.Sample{}, false
	}
	return s.samples[0], true
}

// Last returns the latest sample.
func (s Series) Last() (domain.Sample, bool) {
	if len(s.samples) == 0 {
		return domain.Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Samples returns a copy of the samples.
func (s Series) Samples() []domain.Sample {
	cp := make([]domain.Sample, len(s.samples))
	copy(cp, s.samples)
	return cp
}

// Values returns the sample values in time order.
func (s Series) Values() []float64 {
	vals := make([]float64, len(s.samples))
	for i, smp := range s.samples {
		vals[i] = smp.Value
	}
	return vals
}

// Slice returns the sub-series [i, j). It shares storage with s.
func (s Series) Slice(i, j int) Series {
	return Series{samples: s.samples[i:j:j]}
}

// Map returns a series with f applied to every value.
func (s Series) Map(f func(float64) float64) Series {
	out := make([]domain.Sample, len(s.samples))
	for i, smp := range s.samples {
		out[i] = domain.Sample{Time: smp.Time, Value: f(smp.Value)}
	}
	return Series{samples: out}
}
