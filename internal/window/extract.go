// Package window derives event windows from an index series.
package window

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/timeseries"
)

// ErrUnknownMode is returned for a threshold mode other than above or below.
var ErrUnknownMode = errors.New("unknown threshold mode")

// Extract scans s in order and returns the windows during which the mode
// predicate held against threshold. A value equal to the threshold neither
// opens nor closes a window. A window still open at the end of the series is
// dropped.
func Extract(s timeseries.Series, threshold float64, mode domain.ThresholdMode) ([]domain.Window, error) {
	opens, closes, err := predicates(mode, threshold)
	if err != nil {
		return nil, err
	}

	windows := make([]domain.Window, 0)
	var start, end *time.Time

	for i := 0; i < s.Len(); i++ {
		smp := s.At(i)
		ts := smp.Time

		if opens(smp.Value) && start == nil {
			start = &ts
		} else if closes(smp.Value) && start != nil && end == nil {
			end = &ts
		}

		if start != nil && end != nil {
			windows = append(windows, domain.Window{Start: *start, End: *end})
			start, end = nil, nil
		}
	}

	return windows, nil
}

func predicates(mode domain.ThresholdMode, threshold float64) (opens, closes func(float64) bool, err error) {
	above := func(v float64) bool { return v > threshold }
	below := func(v float64) bool { return v < threshold }

	switch mode {
	case domain.ModeAbove:
		return above, below, nil
	case domain.ModeBelow:
		return below, above, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Merge folds windows separated by at most gap into one, extending the end to
// the later of the two ends, and annotates every output window with its
// duration. Input is ordered by start before folding.
func Merge(windows []domain.Window, gap time.Duration) []domain.Window {
	merged := make([]domain.Window, 0, len(windows))
	if len(windows) == 0 {
		return merged
	}

	sorted := make([]domain.Window, len(windows))
	copy(sorted, windows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	cur := sorted[0]
	for _, next := range sorted[1:] {
		if next.Start.Sub(cur.End) <= gap {
			if next.End.After(cur.End) {
				cur.End = next.End
			}
			continue
		}
		merged = append(merged, cur)
		cur = next
	}
	merged = append(merged, cur)

	return Annotate(merged)
}

// Annotate sets Duration = End - Start on every window and returns the slice.
func Annotate(windows []domain.Window) []domain.Window {
	for i := range windows {
		windows[i].Duration = windows[i].End.Sub(windows[i].Start)
	}
	return windows
}

// FilterMinDuration keeps windows whose span is strictly longer than min.
func FilterMinDuration(windows []domain.Window, min time.Duration) []domain.Window {
	kept := make([]domain.Window, 0, len(windows))
	for _, w := range windows {
		if w.Span() > min {
			kept = append(kept, w)
		}
	}
	return kept
}
