package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/orchestrator"
	"storm-decay-lab/internal/storage"
)

// Sufficiency thresholds.
const (
	MinIndexCoverage = 30 * 24 * time.Hour // first to last index sample
	MaxIndexGap      = 24 * time.Hour      // largest gap between consecutive samples
	MinEntities      = 1                   // satellites kept after cleaning
	MinTraces        = 1                   // classified traces
)

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains every check of one run.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
	Errors  []string // data integrity errors
}

// SufficiencyChecker validates that a run had enough data to be meaningful.
// A failed check does not fail the run; it is reported next to the results.
type SufficiencyChecker struct {
	indexStore storage.IndexStore
	windowSets []string
}

// NewSufficiencyChecker creates a checker. windowSets lists the labels every
// run is expected to produce windows for.
func NewSufficiencyChecker(indexStore storage.IndexStore, windowSets []string) *SufficiencyChecker {
	return &SufficiencyChecker{indexStore: indexStore, windowSets: windowSets}
}

// Check evaluates the index coverage and the outcome of res.
func (c *SufficiencyChecker) Check(ctx context.Context, res *orchestrator.RunResult) (*SufficiencyResult, error) {
	samples, err := c.indexStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	result := &SufficiencyResult{AllPass: true, Errors: []string{}}
	add := func(check SufficiencyCheck, errs []string) {
		result.Checks = append(result.Checks, check)
		if !check.Pass {
			result.AllPass = false
			result.Errors = append(result.Errors, errs...)
		}
	}

	add(checkIndexCoverage(samples), nil)
	add(checkIndexGaps(samples))
	add(checkWindowSets(res.Windows, c.windowSets))
	add(SufficiencyCheck{
		Name:      "Satellites kept",
		Threshold: fmt.Sprintf(">= %d", MinEntities),
		Actual:    fmt.Sprintf("%d", res.Entities),
		Pass:      res.Entities >= MinEntities,
	}, nil)
	add(SufficiencyCheck{
		Name:      "Classified traces",
		Threshold: fmt.Sprintf(">= %d", MinTraces),
		Actual:    fmt.Sprintf("%d", res.Traces),
		Pass:      res.Traces >= MinTraces,
	}, nil)

	return result, nil
}

// checkIndexCoverage: first to last index sample >= MinIndexCoverage.
func checkIndexCoverage(samples []*domain.IndexSample) SufficiencyCheck {
	check := SufficiencyCheck{
		Name:      "Index coverage",
		Threshold: fmt.Sprintf(">= %d days", int(MinIndexCoverage.Hours()/24)),
	}
	if len(samples) == 0 {
		check.Actual = "no samples"
		return check
	}

	first, last := samples[0].Time, samples[len(samples)-1].Time
	span := last.Sub(first)
	check.Actual = fmt.Sprintf("%.1f days (%s to %s)", span.Hours()/24,
		first.UTC().Format("2006-01-02"), last.UTC().Format("2006-01-02"))
	check.Pass = span >= MinIndexCoverage
	return check
}

// checkIndexGaps: no gap between consecutive samples exceeds MaxIndexGap.
// Every offending gap is listed as an integrity error.
func checkIndexGaps(samples []*domain.IndexSample) (SufficiencyCheck, []string) {
	var (
		maxGap time.Duration
		errs   []string
	)
	for i := 1; i < len(samples); i++ {
		gap := samples[i].Time.Sub(samples[i-1].Time)
		if gap > maxGap {
			maxGap = gap
		}
		if gap > MaxIndexGap {
			errs = append(errs, fmt.Sprintf("index gap of %s after %s",
				gap, samples[i-1].Time.UTC().Format(time.RFC3339)))
		}
	}

	return SufficiencyCheck{
		Name:      "Largest index gap",
		Threshold: fmt.Sprintf("<= %s", MaxIndexGap),
		Actual:    maxGap.String(),
		Pass:      len(samples) > 0 && maxGap <= MaxIndexGap,
	}, errs
}

// checkWindowSets: every configured set produced at least one window.
func checkWindowSets(windows []*domain.EventWindow, labels []string) (SufficiencyCheck, []string) {
	counts := make(map[string]int, len(labels))
	for _, w := range windows {
		counts[w.Label]++
	}

	var empty []string
	for _, label := range labels {
		if counts[label] == 0 {
			empty = append(empty, label)
		}
	}
	sort.Strings(empty)

	errs := make([]string, 0, len(empty))
	for _, label := range empty {
		errs = append(errs, fmt.Sprintf("window set %s produced no windows", label))
	}

	return SufficiencyCheck{
		Name:      "Window sets with windows",
		Threshold: fmt.Sprintf("%d of %d", len(labels), len(labels)),
		Actual:    fmt.Sprintf("%d of %d", len(labels)-len(empty), len(labels)),
		Pass:      len(empty) == 0,
	}, errs
}
