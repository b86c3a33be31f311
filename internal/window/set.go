package window

import (
	"errors"
	"fmt"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/idhash"
	"storm-decay-lab/internal/metrics"
	"storm-decay-lab/internal/timeseries"
)

// Set describes how one labelled family of event windows is derived.
// Exactly one of Threshold or Percentile drives extraction: a positive
// Percentile derives the threshold from the index values.
type Set struct {
	Label       string
	Mode        domain.ThresholdMode
	Threshold   float64       // fixed threshold, used when Percentile is zero
	Percentile  float64       // (0, 100]; threshold = percentile of index values
	MergeGap    time.Duration // windows closer than this are merged
	MinDuration time.Duration // windows not longer than this are dropped, 0 keeps all
}

// Validate checks the set definition.
func (s Set) Validate() error {
	if s.Label == "" {
		return errors.New("window set label is empty")
	}
	if !s.Mode.Valid() {
		return fmt.Errorf("window set %s: %w: %q", s.Label, ErrUnknownMode, s.Mode)
	}
	if s.Percentile < 0 || s.Percentile > 100 {
		return fmt.Errorf("window set %s: percentile %v out of range", s.Label, s.Percentile)
	}
	if s.MergeGap < 0 || s.MinDuration < 0 {
		return fmt.Errorf("window set %s: negative duration", s.Label)
	}
	return nil
}

// Derive extracts, filters and merges the windows of set over index.
// The minimum duration filter applies to raw windows before merging.
func Derive(index timeseries.Series, set Set) ([]*domain.EventWindow, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}

	threshold := set.Threshold
	if set.Percentile > 0 {
		v, err := metrics.Percentile(index.Values(), set.Percentile)
		if err != nil {
			return nil, fmt.Errorf("window set %s threshold: %w", set.Label, err)
		}
		threshold = v
	}

	raw, err := Extract(index, threshold, set.Mode)
	if err != nil {
		return nil, err
	}
	if set.MinDuration > 0 {
		raw = FilterMinDuration(raw, set.MinDuration)
	}
	merged := Merge(raw, set.MergeGap)

	out := make([]*domain.EventWindow, 0, len(merged))
	for _, w := range merged {
		out = append(out, &domain.EventWindow{
			ID:         idhash.ComputeWindowID(set.Label, w.Start, w.End),
			Label:      set.Label,
			Start:      w.Start,
			End:        w.End,
			Duration:   w.Duration,
			Threshold:  threshold,
			Percentile: set.Percentile,
			Mode:       set.Mode,
		})
	}
	return out, nil
}
