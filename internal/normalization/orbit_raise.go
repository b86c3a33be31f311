package normalization

import (
	"time"

	"storm-decay-lab/internal/domain"
)

// CompletionLookup resolves the orbit-raise completion of a launch date.
// ingest.OrbitRaise implements it.
type CompletionLookup interface {
	CompleteFor(launch time.Time) (time.Time, bool)
}

// StripOrbitRaise keeps only samples strictly after the orbit-raise completion
// of the satellite's launch. A launch with no record excludes the satellite.
func StripOrbitRaise(elems []*domain.ElementSample, launch time.Time, raises CompletionLookup) ([]*domain.ElementSample, DropReason) {
	complete, ok := raises.CompleteFor(launch)
	if !ok {
		return nil, DropNoOrbitRaise
	}

	kept := make([]*domain.ElementSample, 0, len(elems))
	for _, e := range elems {
		if e.Epoch.After(complete) {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return nil, DropEmptyAfterRaise
	}
	return kept, ""
}
