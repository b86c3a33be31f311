// Package main loads Dst index and element-set files into the configured
// stores.
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
	"storm-decay-lab/internal/ingest"
	"storm-decay-lab/internal/logger"
	"storm-decay-lab/internal/observability"
	"storm-decay-lab/internal/stores"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML configuration file (defaults when empty)")
	dstPath := flag.String("dst", "", "Dst file, WDC format or TIMESTAMP,nT CSV (overrides config)")
	elementsDir := flag.String("elements-dir", "", "Directory of element-set CSV/JSON files (overrides config)")
	dstOut := flag.String("dst-out", "", "Also write the parsed Dst samples as CSV to this path")
	concurrency := flag.Int("concurrency", 0, "Concurrently read element files (overrides config when > 0)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
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
	if *dstPath != "" {
		cfg.Ingest.DstPath = *dstPath
	}
	if *elementsDir != "" {
		cfg.Ingest.ElementsDir = *elementsDir
	}
	if *concurrency > 0 {
		cfg.Ingest.LoadConcurrency = *concurrency
	}

	log := logger.Global()
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
	entry := log.WithComponent("ingest_cmd")

	if cfg.Ingest.DstPath == "" && cfg.Ingest.ElementsDir == "" {
		entry.Fatal("nothing to ingest: set --dst and/or --elements-dir")
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				entry.WithError(err).Error("metrics server failed")
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		entry.WithField("signal", sig.String()).Warn("received signal, stopping ingest")
		cancel()
	}()

	if *dstOut != "" {
		if err := convertDst(cfg.Ingest.DstPath, *dstOut); err != nil {
			entry.WithError(err).Fatal("write dst csv")
		}
		entry.WithField("path", *dstOut).Info("dst csv written")
	}

	st, err := stores.Open(ctx, cfg.Database, log)
	if err != nil {
		entry.WithError(err).Fatal("open stores")
	}
	defer st.Close()
	if !st.Persistent {
		entry.Warn("no database configured: data is parsed and validated but not kept")
	}

	res, err := st.IngestFiles(ctx, cfg.Ingest, log)
	if err != nil {
		entry.WithError(err).Fatal("ingest failed")
	}

	fmt.Println("Ingest completed:")
	fmt.Printf("  Index samples:   %d\n", res.IndexSamples)
	fmt.Printf("  Satellites:      %d\n", res.Satellites)
	fmt.Printf("  Element sets:    %d\n", res.ElementSets)
	fmt.Printf("  Skipped samples: %d (already stored)\n", res.SkippedSamples)
}

// convertDst rewrites a Dst file as TIMESTAMP,nT CSV.
func convertDst(in, out string) error {
	if in == "" {
		return fmt.Errorf("--dst-out needs a dst input")
	}
	samples, err := stores.LoadDst(in)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := ingest.WriteDstCSV(f, samples); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
