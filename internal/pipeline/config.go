package pipeline

import (
	"context"
	"fmt"

	"storm-decay-lab/internal/config"
	"storm-decay-lab/internal/logger"
	"storm-decay-lab/internal/normalization"
	"storm-decay-lab/internal/orchestrator"
	"storm-decay-lab/internal/reporting"
	"storm-decay-lab/internal/stores"
)

// FromConfig builds the orchestrator and pipeline described by cfg over st.
// The orbit-raise table is read here; the S3 uploader is created when the
// archive is enabled.
func FromConfig(ctx context.Context, cfg *config.Config, st *stores.Stores, log *logger.Log) (*Pipeline, error) {
	raises, err := stores.LoadOrbitRaise(cfg.Ingest.OrbitRaisePath)
	if err != nil {
		return nil, fmt.Errorf("load orbit raise table: %w", err)
	}

	signature, err := cfg.Signature()
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(orchestrator.Options{
		IndexStore:          st.Index,
		ElementStore:        st.Element,
		MeasurementStore:    st.Measurement,
		ClassificationStore: st.Classification,
		WindowStore:         st.Window,
		RunStore:            st.Run,
		Normalizer:          normalization.NewRunner(st.Element, st.Satellite, cfg.CleaningRules(), raises, log),
		WindowSets:          cfg.WindowSets(),
		Measure:             cfg.Measurement(),
		VanishedPolicy:      cfg.VanishedPolicy(),
		Magnitude:           cfg.Ingest.Magnitude,
		Workers:             cfg.Pipeline.Workers,
		ConfigSignature:     signature,
		Log:                 log,
	})
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(cfg.Windows))
	for _, w := range cfg.Windows {
		labels = append(labels, w.Label)
	}

	p := New(orch, st, cfg.Pipeline.OutputDir).
		WithLog(log).
		WithSufficiencyChecker(NewSufficiencyChecker(st.Index, labels)).
		WithTracking(cfg.Pipeline.TrackingDays).
		WithWriteOptions(reporting.WriteOptions{
			Parquet:            cfg.Archive.Parquet.Enabled,
			ParquetCompression: cfg.Archive.Parquet.Compression,
		})

	if cfg.Archive.S3.Enabled {
		uploader, err := reporting.NewUploader(ctx, cfg.Archive.S3, log)
		if err != nil {
			return nil, err
		}
		p = p.WithUploader(uploader)
	}

	return p, nil
}
