package tracking

import (
	"context"
	"testing"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/storage/memory"
)

func at(dayOfMonth, hour int) time.Time {
	return time.Date(2024, 5, dayOfMonth, hour, 0, 0, 0, time.UTC)
}

func TestDaily(t *testing.T) {
	elems := []*domain.ElementSample{
		{CatalogID: 1, Epoch: at(9, 23), Drag: 0.5}, // before range
		{CatalogID: 1, Epoch: at(10, 1), Drag: 0.0002},
		{CatalogID: 1, Epoch: at(10, 13), Drag: -0.0009},
		{CatalogID: 2, Epoch: at(10, 20), Drag: 0.0004},
		{CatalogID: 2, Epoch: at(12, 0), Drag: 0},
		{CatalogID: 3, Epoch: at(13, 0), Drag: 0.1}, // after range
	}

	got := Daily(elems, at(10, 17), 2)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}

	d0 := got[0]
	if !d0.Day.Equal(at(10, 0)) {
		t.Errorf("day 0 = %v, want UTC midnight of May 10", d0.Day)
	}
	if d0.ElementSets != 3 || d0.Satellites != 2 {
		t.Errorf("day 0 counts = %d sets / %d sats, want 3 / 2", d0.ElementSets, d0.Satellites)
	}
	if d0.SetsPerSatellite[1] != 2 || d0.SetsPerSatellite[2] != 1 {
		t.Errorf("sets per satellite = %v", d0.SetsPerSatellite)
	}
	if d0.MaxAbsDrag != 0.0009 {
		t.Errorf("max |drag| = %v, want 0.0009", d0.MaxAbsDrag)
	}
	if d0.PositiveDrag != 2 {
		t.Errorf("positive drag = %d, want 2", d0.PositiveDrag)
	}

	if got[1].ElementSets != 0 || got[1].Satellites != 0 {
		t.Errorf("empty day = %+v", got[1])
	}
	if got[2].ElementSets != 1 || got[2].PositiveDrag != 0 {
		t.Errorf("day 2 = %+v", got[2])
	}
	if ids := d0.SortedSatellites(); len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("sorted satellites = %v", ids)
	}
}

func TestDailyFromStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewElementStore()
	err := store.InsertBulk(ctx, []*domain.ElementSample{
		{CatalogID: 1, Epoch: at(10, 1)},
		{CatalogID: 2, Epoch: at(11, 23)},
		{CatalogID: 2, Epoch: at(12, 0)},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := DailyFromStore(ctx, store, nil, at(10, 0), 1)
	if err != nil {
		t.Fatalf("DailyFromStore: %v", err)
	}
	if len(got) != 2 || got[0].ElementSets != 1 || got[1].ElementSets != 1 {
		t.Fatalf("insights = %+v", got)
	}
}
