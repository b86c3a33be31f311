// Package normalization cleans raw element sets into the ordered entities the
// measurement core consumes.
package normalization

import (
	"math"
	"sort"
	"time"

	"storm-decay-lab/internal/domain"
)

// DropReason explains why a satellite was excluded. Empty means kept.
type DropReason string

const (
	DropTooFewSamples   DropReason = "too_few_samples"
	DropTooYoung        DropReason = "too_young"
	DropNoOperational   DropReason = "no_operational_samples"
	DropNoOrbitRaise    DropReason = "no_orbit_raise_record"
	DropEmptyAfterRaise DropReason = "empty_after_orbit_raise"
)

// Rules are the cleaning thresholds.
type Rules struct {
	MinSamples    int           // fewer element sets drop the satellite
	MinAge        time.Duration // shorter first-to-last epoch span drops the satellite
	MaxAltitudeKM float64       // samples at or above are removed
}

// DefaultRules returns 10 samples, 30 days and 650 km.
func DefaultRules() Rules {
	return Rules{
		MinSamples:    10,
		MinAge:        30 * 24 * time.Hour,
		MaxAltitudeKM: 650,
	}
}

// Clean orders elems by epoch, collapses equal epochs (last wins) and drops
// non-finite altitudes. The satellite is then dropped when it has fewer than
// MinSamples sets or spans less than MinAge; otherwise samples at or above
// MaxAltitudeKM are removed. The count and age checks run before the
// altitude filter. The input slice is not modified.
func (r Rules) Clean(elems []*domain.ElementSample) ([]*domain.ElementSample, DropReason) {
	sorted := make([]*domain.ElementSample, 0, len(elems))
	for _, e := range elems {
		if e == nil || math.IsNaN(e.AltitudeKM) || math.IsInf(e.AltitudeKM, 0) {
			continue
		}
		sorted = append(sorted, e)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Epoch.Before(sorted[j].Epoch)
	})

	deduped := sorted[:0]
	for _, e := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Epoch.Equal(e.Epoch) {
			deduped[n-1] = e
			continue
		}
		deduped = append(deduped, e)
	}

	if len(deduped) < r.MinSamples {
		return nil, DropTooFewSamples
	}
	if age(deduped) < r.MinAge {
		return nil, DropTooYoung
	}

	kept := make([]*domain.ElementSample, 0, len(deduped))
	for _, e := range deduped {
		if e.AltitudeKM < r.MaxAltitudeKM {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return nil, DropNoOperational
	}
	return kept, ""
}

func age(ordered []*domain.ElementSample) time.Duration {
	if len(ordered) == 0 {
		return 0
	}
	return ordered[len(ordered)-1].Epoch.Sub(ordered[0].Epoch)
}
