// Package tracking summarises how densely satellites were tracked per UTC
// day around an event.
package tracking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage"
)

const day = 24 * time.Hour

// DayInsight is the tracking summary of one UTC day.
type DayInsight struct {
	Day              time.Time   // UTC midnight
	ElementSets      int         // element sets with an epoch on Day
	Satellites       int         // distinct catalog numbers among them
	SetsPerSatellite map[int]int // element sets per catalog number
	MaxAbsDrag       float64     // max |drag|, 0 when ElementSets is 0
	PositiveDrag     int         // element sets with drag > 0
}

// Daily buckets elems by the UTC day of their epoch and returns one insight
// for each day from the day of from through days days later, inclusive.
// Days without element sets are present with zero counts.
func Daily(elems []*domain.ElementSample, from time.Time, days int) []DayInsight {
	if days < 0 {
		return nil
	}
	first := from.UTC().Truncate(day)

	out := make([]DayInsight, days+1)
	for i := range out {
		out[i] = DayInsight{Day: first.Add(time.Duration(i) * day), SetsPerSatellite: map[int]int{}}
	}

	for _, e := range elems {
		idx := int(e.Epoch.UTC().Truncate(day).Sub(first) / day)
		if e.Epoch.Before(first) || idx > days {
			continue
		}
		d := &out[idx]
		d.ElementSets++
		d.SetsPerSatellite[e.CatalogID]++
		if abs := math.Abs(e.Drag); abs > d.MaxAbsDrag {
			d.MaxAbsDrag = abs
		}
		if e.Drag > 0 {
			d.PositiveDrag++
		}
	}

	for i := range out {
		out[i].Satellites = len(out[i].SetsPerSatellite)
	}
	return out
}

// DailyFromStore loads the element sets of ids over the covered days and
// runs Daily. With ids empty, every catalog number in store is used.
func DailyFromStore(ctx context.Context, store storage.ElementStore, ids []int, from time.Time, days int) ([]DayInsight, error) {
	if len(ids) == 0 {
		var err error
		if ids, err = store.GetCatalogIDs(ctx); err != nil {
			return nil, fmt.Errorf("list catalog ids: %w", err)
		}
	}

	start := from.UTC().Truncate(day)
	end := start.Add(time.Duration(days+1)*day - time.Nanosecond)

	var elems []*domain.ElementSample
	for _, id := range ids {
		got, err := store.GetByTimeRange(ctx, id, start, end)
		if err != nil {
			return nil, fmt.Errorf("load elements of %d: %w", id, err)
		}
		elems = append(elems, got...)
	}
	return Daily(elems, from, days), nil
}

// SortedSatellites returns the catalog numbers of d in ascending order.
func (d DayInsight) SortedSatellites() []int {
	ids := make([]int, 0, len(d.SetsPerSatellite))
	for id := range d.SetsPerSatellite {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
