// Package main provides the one-shot pipeline entry point.
// Executes: ingest files → normalization → windows → measurement →
// classification → reporting
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storm-decay-lab/internal/config"
	"storm-decay-lab/internal/logger"
	"storm-decay-lab/internal/observability"
	"storm-decay-lab/internal/pipeline"
	"storm-decay-lab/internal/stores"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML configuration file (defaults when empty)")
	workers := flag.Int("workers", 0, "Worker count (overrides config when > 0)")
	outputDir := flag.String("output-dir", "", "Output directory (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config, empty to disable)")
	skipIngest := flag.Bool("skip-ingest", false, "Use stored data only, do not read the configured input files")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}
	if *outputDir != "" {
		cfg.Pipeline.OutputDir = *outputDir
	}
	if *metricsAddr != "" {
		cfg.Pipeline.MetricsAddr = *metricsAddr
	}

	log := logger.Global()
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
	entry := log.WithComponent("pipeline_cmd")

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		entry.WithField("signal", sig.String()).Warn("received signal, cancelling pipeline")
		cancel()
	}()

	// Start metrics server if enabled
	if cfg.Pipeline.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			entry.WithField("addr", cfg.Pipeline.MetricsAddr).Info("metrics server started")
			if err := http.ListenAndServe(cfg.Pipeline.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				entry.WithError(err).Error("metrics server failed")
			}
		}()
	}

	st, err := stores.Open(ctx, cfg.Database, log)
	if err != nil {
		entry.WithError(err).Fatal("open stores")
	}
	defer st.Close()

	// In-memory stores start empty and always need the input files
	if !*skipIngest || !st.Persistent {
		res, err := st.IngestFiles(ctx, cfg.Ingest, log)
		if err != nil {
			entry.WithError(err).Fatal("ingest input files")
		}
		entry.WithFields(logger.Fields{
			"index_samples":   res.IndexSamples,
			"element_sets":    res.ElementSets,
			"satellites":      res.Satellites,
			"skipped_samples": res.SkippedSamples,
		}).Info("ingest finished")
	}

	p, err := pipeline.FromConfig(ctx, cfg, st, log)
	if err != nil {
		entry.WithError(err).Fatal("build pipeline")
	}

	res, err := p.Run(ctx)
	if err != nil {
		entry.WithError(err).Fatal("pipeline failed")
	}

	fmt.Println("Pipeline completed successfully:")
	fmt.Printf("  Run ID:   %s\n", res.Run.RunID)
	fmt.Printf("  Entities: %d\n", res.Run.Entities)
	fmt.Printf("  Windows:  %d\n", len(res.Run.Windows))
	fmt.Printf("  Traces:   %d\n", res.Run.Traces)
	if res.Sufficiency != nil && !res.Sufficiency.AllPass {
		fmt.Printf("  Data quality: FAIL (%d issues)\n", len(res.Sufficiency.Errors))
	}
	for _, f := range res.Files {
		fmt.Printf("  - %s\n", f)
	}
	for _, k := range res.Uploaded {
		fmt.Printf("  - s3://%s/%s\n", cfg.Archive.S3.Bucket, k)
	}
}
