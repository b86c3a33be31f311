package timeseries

import (
	"fmt"
	"math"
	"time"

	"storm-decay-lab/internal/domain"
)

// Entity is one tracked satellite with its altitude and drag series.
// Both series share the same epochs.
type Entity struct {
	CatalogID  int
	LaunchDate time.Time
	Altitude   Series
	Drag       Series
}

// FromElements builds an entity from element sets ordered by epoch.
func FromElements(catalogID int, launch time.Time, elems []*domain.ElementSample) (*Entity, error) {
	alt := make([]domain.Sample, 0, len(elems))
	drag := make([]domain.Sample, 0, len(elems))
	for _, e := range elems {
		if e.CatalogID != catalogID {
			return nil, fmt.Errorf("element for %d in series of %d", e.CatalogID, catalogID)
		}
		alt = append(alt, domain.Sample{Time: e.Epoch, Value: e.AltitudeKM})
		drag = append(drag, domain.Sample{Time: e.Epoch, Value: e.Drag})
	}

	altSeries, err := New(alt)
	if err != nil {
		return nil, fmt.Errorf("catalog %d altitude: %w", catalogID, err)
	}
	dragSeries, err := New(drag)
	if err != nil {
		return nil, fmt.Errorf("catalog %d drag: %w", catalogID, err)
	}

	return &Entity{
		CatalogID:  catalogID,
		LaunchDate: launch,
		Altitude:   altSeries,
		Drag:       dragSeries,
	}, nil
}

// Observed returns the time between first and last sample.
func (e *Entity) Observed() time.Duration {
	first, ok := e.Altitude.First()
	if !ok {
		return 0
	}
	last, _ := e.Altitude.Last()
	return last.Time.Sub(first.Time)
}

// FromIndex builds an index series. With magnitude set, values are |nT|.
func FromIndex(samples []*domain.IndexSample, magnitude bool) (Series, error) {
	out := make([]domain.Sample, len(samples))
	for i, s := range samples {
		v := s.NanoTesla
		if magnitude {
			v = math.Abs(v)
		}
		out[i] = domain.Sample{Time: s.Time, Value: v}
	}
	return New(out)
}
