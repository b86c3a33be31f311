package normalization

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/logger"
	"storm-decay-lab/internal/observability"
	"storm-decay-lab/internal/storage"
	"storm-decay-lab/internal/timeseries"
)

// NormalizationEngine turns stored element sets into measurable entities.
type NormalizationEngine interface {
	// NormalizeSatellite cleans one satellite. A nil entity with a non-empty
	// reason means the satellite was dropped.
	NormalizeSatellite(ctx context.Context, catalogID int) (*timeseries.Entity, DropReason, error)
}

// Runner implements NormalizationEngine over the element and satellite stores.
type Runner struct {
	elementStore   storage.ElementStore
	satelliteStore storage.SatelliteStore
	rules          Rules
	raises         CompletionLookup
	log            *logger.Entry
}

// NewRunner creates a normalization runner. With raises nil the orbit-raise
// strip is skipped. Kept satellites are recorded in satelliteStore when it is
// not nil.
func NewRunner(
	elementStore storage.ElementStore,
	satelliteStore storage.SatelliteStore,
	rules Rules,
	raises CompletionLookup,
	log *logger.Log,
) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{
		elementStore:   elementStore,
		satelliteStore: satelliteStore,
		rules:          rules,
		raises:         raises,
		log:            log.WithComponent("normalization"),
	}
}

// NormalizeSatellite loads, cleans and strips one satellite.
func (r *Runner) NormalizeSatellite(ctx context.Context, catalogID int) (*timeseries.Entity, DropReason, error) {
	elems, err := r.elementStore.GetByCatalogID(ctx, catalogID)
	if err != nil {
		return nil, "", fmt.Errorf("load elements of %d: %w", catalogID, err)
	}

	launch := launchOf(elems)

	kept, reason := r.rules.Clean(elems)
	if reason == "" && r.raises != nil {
		kept, reason = StripOrbitRaise(kept, launch, r.raises)
	}
	if reason != "" {
		observability.RecordEntityDropped(string(reason))
		r.log.WithFields(logger.Fields{"catalog_id": catalogID, "reason": reason, "samples": len(elems)}).Debug("satellite dropped")
		return nil, reason, nil
	}

	entity, err := timeseries.FromElements(catalogID, launch, kept)
	if err != nil {
		return nil, "", err
	}

	if r.satelliteStore != nil {
		sat := &domain.Satellite{
			CatalogID:   catalogID,
			LaunchDate:  launch,
			FirstEpoch:  kept[0].Epoch,
			LastEpoch:   kept[len(kept)-1].Epoch,
			SampleCount: len(kept),
		}
		if err := r.satelliteStore.Insert(ctx, sat); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, "", fmt.Errorf("record satellite %d: %w", catalogID, err)
		}
	}

	return entity, "", nil
}

// BatchResult is the outcome of NormalizeBatch.
type BatchResult struct {
	Entities []*timeseries.Entity // kept satellites, ordered by catalog number
	Dropped  map[DropReason]int   // dropped satellites per reason
}

// NormalizeBatch normalizes every catalog number. With ids empty, all
// catalog numbers in the element store are used.
func (r *Runner) NormalizeBatch(ctx context.Context, ids []int) (*BatchResult, error) {
	if len(ids) == 0 {
		var err error
		ids, err = r.elementStore.GetCatalogIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list catalog ids: %w", err)
		}
	}
	ids = append([]int(nil), ids...)
	sort.Ints(ids)

	res := &BatchResult{Dropped: make(map[DropReason]int)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entity, reason, err := r.NormalizeSatellite(ctx, id)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			res.Dropped[reason]++
			continue
		}
		res.Entities = append(res.Entities, entity)
	}

	r.log.WithFields(logger.Fields{"kept": len(res.Entities), "dropped": len(ids) - len(res.Entities)}).Info("normalization finished")
	return res, nil
}

// launchOf returns the first non-zero launch date among elems.
func launchOf(elems []*domain.ElementSample) time.Time {
	for _, e := range elems {
		if e != nil && !e.LaunchDate.IsZero() {
			return e.LaunchDate
		}
	}
	return time.Time{}
}
