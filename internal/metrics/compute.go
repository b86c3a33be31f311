package metrics

import (
	"errors"
	"math"
	"sort"
)

// ErrNoValues is returned when a statistic is requested over no usable values.
var ErrNoValues = errors.New("no values available")

// Percentile returns the p-th percentile (p in [0, 100]) of values using
// linear interpolation between closest ranks. NaN values are ignored.
func Percentile(values []float64, p float64) (float64, error) {
	if p < 0 || p > 100 || math.IsNaN(p) {
		return 0, errors.New("percentile must be within [0, 100]")
	}
	sorted := finiteSorted(values)
	if len(sorted) == 0 {
		return 0, ErrNoValues
	}
	return computePercentile(sorted, p/100), nil
}

// Median returns the median of values, ignoring NaN.
// ok is false when no value remains.
func Median(values []float64) (median float64, ok bool) {
	sorted := finiteSorted(values)
	if len(sorted) == 0 {
		return 0, false
	}
	return computePercentile(sorted, 0.5), true
}

// Max returns the largest value, ignoring NaN.
func Max(values []float64) (float64, bool) {
	found := false
	var m float64
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if !found || v > m {
			m = v
			found = true
		}
	}
	return m, found
}

// CDFPoint is one step of an empirical distribution.
type CDFPoint struct {
	Value    float64
	Fraction float64 // share of values <= Value
}

// CDF returns the empirical cumulative distribution of values.
func CDF(values []float64) []CDFPoint {
	sorted := finiteSorted(values)
	n := len(sorted)
	points := make([]CDFPoint, 0, n)
	for i, v := range sorted {
		frac := float64(i+1) / float64(n)
		if k := len(points); k > 0 && points[k-1].Value == v {
			points[k-1].Fraction = frac
			continue
		}
		points = append(points, CDFPoint{Value: v, Fraction: frac})
	}
	return points
}

// finiteSorted returns an ascending copy of values without NaN.
func finiteSorted(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// computePercentile computes percentile from sorted slice.
// p in [0, 1]; linear interpolation between neighbours.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	// Index for percentile (0-based, continuous)
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
