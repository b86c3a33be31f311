package orchestrator

import (
	"context"
	"sync"
	"time"

	"storm-decay-lab/internal/classify"
	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/measure"
	"storm-decay-lab/internal/observability"
	"storm-decay-lab/internal/timeseries"
)

// measureJob is one (entity, window) pair.
type measureJob struct {
	entity *timeseries.Entity
	window *domain.EventWindow
}

// jobResult is the output of a single measureJob. err holds soft outcomes
// as well as failures.
type jobResult struct {
	rows  []*domain.MeasurementRow
	class *domain.ClassificationRow
	err   error
}

// fanOut measures every (entity, window) pair on a fixed number of workers
// and folds the results into result. Completion order is not preserved;
// rows are sorted before returning.
func (o *Orchestrator) fanOut(
	ctx context.Context,
	result *RunResult,
	measurer *measure.Measurer,
	classifier *classify.Classifier,
	entities []*timeseries.Entity,
	windows []*domain.EventWindow,
) error {
	if len(entities) == 0 || len(windows) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan measureJob, o.workers*2)
	results := make(chan jobResult, o.workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res := measureSingle(result.RunID, measurer, classifier, job)
				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for _, w := range windows {
			for _, e := range entities {
				select {
				case jobs <- measureJob{entity: e, window: w}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for res := range results {
		if firstErr != nil {
			continue
		}
		if err := collect(result, res); err != nil {
			firstErr = err
			cancel()
		}
	}
	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sortRows(result)
	return nil
}

// measureSingle measures and classifies one pair.
func measureSingle(runID string, measurer *measure.Measurer, classifier *classify.Classifier, job measureJob) jobResult {
	observability.DefaultMetrics.WorkerJobsRunning.Inc()
	defer observability.DefaultMetrics.WorkerJobsRunning.Dec()
	start := time.Now()
	defer func() {
		observability.DefaultMetrics.WorkerJobLatency.Observe(time.Since(start).Seconds())
	}()

	trace, err := measurer.Measure(job.entity, job.window.Start)
	if err != nil {
		return jobResult{err: err}
	}

	class, summary := classifier.Evaluate(trace)
	observability.RecordClassification(string(class))

	statuses := make([]string, len(trace.Points))
	rows := make([]*domain.MeasurementRow, len(trace.Points))
	for i, p := range trace.Points {
		statuses[i] = string(p.Deviation.Status)
		rows[i] = measurementRow(runID, job.window, trace, p)
	}
	observability.RecordTrace(statuses)

	return jobResult{
		rows: rows,
		class: &domain.ClassificationRow{
			RunID:        runID,
			WindowLabel:  job.window.Label,
			EventStart:   job.window.Start,
			CatalogID:    trace.CatalogID,
			Class:        class,
			UsablePoints: summary.Points,
			FirstKM:      summary.First,
			LastKM:       summary.Last,
			MedianKM:     summary.Median,
			MaxKM:        summary.Max,
		},
	}
}

// measurementRow flattens one trace point.
func measurementRow(runID string, w *domain.EventWindow, trace *domain.Trace, p domain.TracePoint) *domain.MeasurementRow {
	row := &domain.MeasurementRow{
		RunID:           runID,
		WindowLabel:     w.Label,
		EventStart:      w.Start,
		EventEnd:        w.End,
		CatalogID:       trace.CatalogID,
		LaunchDate:      trace.LaunchDate,
		OffsetDays:      p.OffsetDays,
		Status:          p.Deviation.Status,
		BaselineKM:      trace.BaselineKM,
		AnchorEpoch:     trace.AnchorEpoch,
		AnchorKM:        trace.AnchorKM,
		MaxDrag:         p.MaxDrag,
		PeakDeviationKM: p.PeakDeviationKM,
		IndexNT:         p.IndexNT,
	}
	if p.Deviation.IsObserved() {
		row.DeviationKM = p.Deviation.KM
	}
	if !p.SampleEpoch.IsZero() {
		epoch := p.SampleEpoch
		row.SampleEpoch = &epoch
	}
	return row
}
