// Package main regenerates the report of a stored pipeline run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"storm-decay-lab/internal/config"
	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/logger"
	"storm-decay-lab/internal/reporting"
	"storm-decay-lab/internal/storage"
	"storm-decay-lab/internal/stores"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML configuration file (defaults when empty)")
	runID := flag.String("run-id", "", "Run to report (latest run when empty)")
	outputDir := flag.String("output-dir", "", "Output directory (overrides config)")
	listRuns := flag.Bool("list", false, "List stored runs and exit")
	upload := flag.Bool("upload", false, "Archive the written files to the configured S3 bucket")
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
	if *outputDir != "" {
		cfg.Pipeline.OutputDir = *outputDir
	}

	log := logger.Global()
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	st, err := stores.Open(ctx, cfg.Database, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to databases: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()
	if !st.Persistent {
		fmt.Fprintln(os.Stderr, "Error: postgres_dsn and clickhouse_dsn are required, runs are only stored in databases")
		os.Exit(1)
	}

	runs, err := st.Run.GetAll(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading runs: %v\n", err)
		os.Exit(1)
	}

	if *listRuns {
		printRuns(runs)
		return
	}

	id := *runID
	if id == "" {
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "Error: no runs stored")
			os.Exit(1)
		}
		id = runs[len(runs)-1].RunID
	}

	report, err := reporting.NewGenerator(st.Run, st.Window, st.Measurement, st.Classification).Generate(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Error: run %s not found\n", id)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	files, err := reporting.WriteDir(cfg.Pipeline.OutputDir, report, reporting.WriteOptions{
		Parquet:            cfg.Archive.Parquet.Enabled,
		ParquetCompression: cfg.Archive.Parquet.Compression,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Report for run %s generated successfully:\n", id)
	for _, f := range files {
		fmt.Printf("  - %s\n", f)
	}

	if *upload {
		uploader, err := reporting.NewUploader(ctx, cfg.Archive.S3, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating uploader: %v\n", err)
			os.Exit(1)
		}
		keys, err := uploader.UploadFiles(ctx, id, files)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error uploading report: %v\n", err)
			os.Exit(1)
		}
		for _, k := range keys {
			fmt.Printf("  - s3://%s/%s\n", cfg.Archive.S3.Bucket, k)
		}
	}
}

func printRuns(runs []*domain.RunRecord) {
	if len(runs) == 0 {
		fmt.Println("No runs stored.")
		return
	}
	fmt.Printf("%-36s  %-20s  %8s  %7s  %6s  %s\n", "RUN ID", "STARTED", "ENTITIES", "WINDOWS", "TRACES", "SIGNATURE")
	for _, r := range runs {
		sig := r.ConfigSignature
		if len(sig) > 12 {
			sig = sig[:12]
		}
		fmt.Printf("%-36s  %-20s  %8d  %7d  %6d  %s\n",
			r.RunID, r.StartedAt.UTC().Format("2006-01-02 15:04:05"), r.Entities, r.Windows, r.Traces, sig)
	}
}
