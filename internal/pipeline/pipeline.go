// Package pipeline runs one full analysis pass: orchestration, data
// sufficiency checks, report generation, output files and the optional
// object store archive.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"storm-decay-lab/internal/logger"
	"storm-decay-lab/internal/orchestrator"
	"storm-decay-lab/internal/reporting"
	"storm-decay-lab/internal/stores"
	"storm-decay-lab/internal/tracking"
)

// Runner is the part of the orchestrator the pipeline drives.
type Runner interface {
	Run(ctx context.Context) (*orchestrator.RunResult, error)
}

// Pipeline wires an orchestrator run to report outputs.
type Pipeline struct {
	runner       Runner
	stores       *stores.Stores
	reportGen    *reporting.Generator
	sufficiency  *SufficiencyChecker // optional
	uploader     *reporting.Uploader // optional
	outputDir    string
	writeOpts    reporting.WriteOptions
	trackingDays int
	log          *logger.Entry
}

// Result is the outcome of one pipeline pass.
type Result struct {
	Run         *orchestrator.RunResult
	Report      *reporting.Report
	Sufficiency *SufficiencyResult
	Files       []string // written paths in write order
	Uploaded    []string // object keys, empty without an uploader
}

// New creates a pipeline writing into outputDir.
func New(runner Runner, st *stores.Stores, outputDir string) *Pipeline {
	return &Pipeline{
		runner:    runner,
		stores:    st,
		reportGen: reporting.NewGenerator(st.Run, st.Window, st.Measurement, st.Classification),
		outputDir: outputDir,
		log:       logger.Discard().WithComponent("pipeline"),
	}
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.reportGen = p.reportGen.WithClock(clock)
	return p
}

// WithSufficiencyChecker adds a data quality section to the report.
func (p *Pipeline) WithSufficiencyChecker(c *SufficiencyChecker) *Pipeline {
	p.sufficiency = c
	return p
}

// WithUploader archives every written file after the run.
func (p *Pipeline) WithUploader(u *reporting.Uploader) *Pipeline {
	p.uploader = u
	return p
}

// WithWriteOptions sets the output file options.
func (p *Pipeline) WithWriteOptions(opts reporting.WriteOptions) *Pipeline {
	p.writeOpts = opts
	return p
}

// WithTracking adds daily element-set insight for days after the latest
// event window. Zero disables it.
func (p *Pipeline) WithTracking(days int) *Pipeline {
	p.trackingDays = days
	return p
}

// WithLog sets the logger.
func (p *Pipeline) WithLog(log *logger.Log) *Pipeline {
	if log != nil {
		p.log = log.WithComponent("pipeline")
	}
	return p
}

// Run executes one pass and writes:
// - REPORT.md
// - windows.csv, measurements.csv, classifications.csv
// - event_aggregates.csv, deviation_cdf.csv
// - tracking.csv when tracking is enabled and windows exist
// - measurements.parquet when enabled
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	// 1. Orchestrate
	run, err := p.runner.Run(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{Run: run}

	// 2. Report from stored rows
	report, err := p.reportGen.Generate(ctx, run.RunID)
	if err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}
	res.Report = report

	// 3. Data quality
	if p.sufficiency != nil {
		suff, err := p.sufficiency.Check(ctx, run)
		if err != nil {
			return nil, fmt.Errorf("sufficiency check: %w", err)
		}
		res.Sufficiency = suff
		report.DataQuality = convertToDataQuality(suff)
		if !suff.AllPass {
			p.log.WithField("errors", len(suff.Errors)).Warn("data sufficiency checks failed")
		}
	}

	// 4. Daily tracking after the latest event
	if p.trackingDays > 0 && len(run.Windows) > 0 {
		from := latestStart(run)
		days, err := tracking.DailyFromStore(ctx, p.stores.Element, nil, from, p.trackingDays)
		if err != nil {
			return nil, fmt.Errorf("daily tracking: %w", err)
		}
		report.Tracking = days
	}

	// 5. Files
	files, err := reporting.WriteDir(p.outputDir, report, p.writeOpts)
	if err != nil {
		return nil, err
	}
	res.Files = files
	p.log.WithFields(logger.Fields{"run_id": run.RunID, "files": len(files), "dir": p.outputDir}).Info("report written")

	// 6. Archive
	if p.uploader != nil {
		keys, err := p.uploader.UploadFiles(ctx, run.RunID, files)
		if err != nil {
			return nil, fmt.Errorf("archive report: %w", err)
		}
		res.Uploaded = keys
	}

	return res, nil
}

func latestStart(run *orchestrator.RunResult) time.Time {
	var latest time.Time
	for _, w := range run.Windows {
		if w.Start.After(latest) {
			latest = w.Start
		}
	}
	return latest
}

// convertToDataQuality converts SufficiencyResult to reporting.DataQualitySection.
func convertToDataQuality(result *SufficiencyResult) *reporting.DataQualitySection {
	checks := make([]reporting.SufficiencyCheckRow, len(result.Checks))
	for i, c := range result.Checks {
		checks[i] = reporting.SufficiencyCheckRow{
			Name:      c.Name,
			Threshold: c.Threshold,
			Actual:    c.Actual,
			Pass:      c.Pass,
		}
	}
	return &reporting.DataQualitySection{
		SufficiencyChecks: checks,
		IntegrityErrors:   result.Errors,
		AllChecksPassed:   result.AllPass,
	}
}
