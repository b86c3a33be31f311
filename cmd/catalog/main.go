// Package main detects newly catalogued satellites by diffing a TLE snapshot
// against the catalog numbers seen before.
//
// Known numbers come from the --known file when given, otherwise from the
// catalog progress table of the configured database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"storm-decay-lab/internal/config"
	"storm-decay-lab/internal/ingest"
	"storm-decay-lab/internal/logger"
	"storm-decay-lab/internal/storage"
	"storm-decay-lab/internal/stores"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML configuration file (defaults when empty)")
	snapshot := flag.String("snapshot", "", "3-line TLE snapshot file (overrides config catalog_path)")
	knownPath := flag.String("known", "", "Known catalog list file, rewritten with the merged list")
	addedPath := flag.String("added", "", "Write newly seen catalog numbers to this file (stdout when empty)")
	dryRun := flag.Bool("dry-run", false, "Report additions without updating the known list")
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
	if *snapshot != "" {
		cfg.Ingest.CatalogPath = *snapshot
	}
	if cfg.Ingest.CatalogPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --snapshot is required")
		os.Exit(1)
	}

	log := logger.Global()
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
	entry := log.WithComponent("catalog_cmd")

	current, err := readSnapshot(cfg.Ingest.CatalogPath)
	if err != nil {
		entry.WithError(err).Fatal("read snapshot")
	}

	ctx := context.Background()

	var (
		known    []int
		progress storage.CatalogProgressStore
	)
	if *knownPath != "" {
		known, err = readKnown(*knownPath)
	} else {
		var st *stores.Stores
		st, err = stores.Open(ctx, cfg.Database, log)
		if err == nil {
			defer st.Close()
			if !st.Persistent {
				entry.Fatal("set --known or configure a database to keep catalog progress")
			}
			progress = st.CatalogProgress
			known, err = progress.LoadKnown(ctx)
			if last, lerr := progress.GetLastSync(ctx); lerr == nil {
				entry.WithFields(logger.Fields{"source": last.Source, "synced_at": last.SyncedAt, "total": last.Total}).Info("previous snapshot")
			} else if !errors.Is(lerr, storage.ErrNotFound) {
				err = lerr
			}
		}
	}
	if err != nil {
		entry.WithError(err).Fatal("load known catalog numbers")
	}

	added, merged := ingest.DiffCatalog(current, known)
	entry.WithFields(logger.Fields{"snapshot": len(current), "known": len(known), "added": len(added)}).Info("catalog diffed")

	if err := writeList(*addedPath, added); err != nil {
		entry.WithError(err).Fatal("write added list")
	}
	if *dryRun {
		return
	}

	switch {
	case *knownPath != "":
		if err := writeList(*knownPath, merged); err != nil {
			entry.WithError(err).Fatal("write known list")
		}
	case progress != nil:
		if err := progress.MarkKnown(ctx, added); err != nil {
			entry.WithError(err).Fatal("mark known")
		}
		sync := &storage.CatalogSync{
			SyncedAt: time.Now().UTC(),
			Source:   filepath.Base(cfg.Ingest.CatalogPath),
			Total:    len(current),
		}
		if err := progress.SetLastSync(ctx, sync); err != nil {
			entry.WithError(err).Fatal("save sync")
		}
	}
}

func readSnapshot(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.ExtractCatalogNumbers(f)
}

// readKnown reads the known list. A missing file is an empty list.
func readKnown(path string) ([]int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.ReadCatalogList(f)
}

// writeList writes ids to path, or to stdout when path is empty.
func writeList(path string, ids []int) error {
	if path == "" {
		return ingest.WriteCatalogList(os.Stdout, ids)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ingest.WriteCatalogList(f, ids); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
