package lookup

import (
	"sort"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/timeseries"
)

// LastBefore returns the latest sample with timestamp strictly before t.
// A sample exactly at t is never returned.
func LastBefore(s timeseries.Series, t time.Time) (domain.Sample, bool) {
	i := firstAtOrAfter(s, t)
	if i == 0 {
		return domain.Sample{}, false
	}
	return s.At(i - 1), true
}

// FirstAfter returns the earliest sample with timestamp strictly after t.
// A sample exactly at t is never returned.
func FirstAfter(s timeseries.Series, t time.Time) (domain.Sample, bool) {
	i := firstAfter(s, t)
	if i == s.Len() {
		return domain.Sample{}, false
	}
	return s.At(i), true
}

// Before returns all samples with timestamp strictly before t.
// The result shares storage with s.
func Before(s timeseries.Series, t time.Time) timeseries.Series {
	return s.Slice(0, firstAtOrAfter(s, t))
}

// Between returns all samples with from <= timestamp <= to.
// The result shares storage with s.
func Between(s timeseries.Series, from, to time.Time) timeseries.Series {
	if to.Before(from) {
		return timeseries.Series{}
	}
	return s.Slice(firstAtOrAfter(s, from), firstAfter(s, to))
}

// Strictly returns all samples with from < timestamp < to.
func Strictly(s timeseries.Series, from, to time.Time) timeseries.Series {
	lo := firstAfter(s, from)
	hi := firstAtOrAfter(s, to)
	if hi < lo {
		return timeseries.Series{}
	}
	return s.Slice(lo, hi)
}

// firstAtOrAfter returns the index of the first sample with time >= t.
func firstAtOrAfter(s timeseries.Series, t time.Time) int {
	return sort.Search(s.Len(), func(i int) bool {
		return !s.At(i).Time.Before(t)
	})
}

// firstAfter returns the index of the first sample with time > t.
func firstAfter(s timeseries.Series, t time.Time) int {
	return sort.Search(s.Len(), func(i int) bool {
		return s.At(i).Time.After(t)
	})
}
