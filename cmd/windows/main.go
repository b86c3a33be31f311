// Package main derives event windows from a Dst file and writes them as CSV.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"storm-decay-lab/internal/config"
	"storm-decay-lab/internal/domain"
	"storm-decay-lab/internal/observability"
	"storm-decay-lab/internal/reporting"
	"storm-decay-lab/internal/stores"
	"storm-decay-lab/internal/timeseries"
	"storm-decay-lab/internal/window"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML configuration file (defaults when empty)")
	dstPath := flag.String("dst", "", "Dst file, WDC format or TIMESTAMP,nT CSV (overrides config)")
	label := flag.String("set", "", "Only derive the window set with this label")
	out := flag.String("out", "", "Output CSV path (stdout when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *dstPath != "" {
		cfg.Ingest.DstPath = *dstPath
	}
	if cfg.Ingest.DstPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --dst is required")
		os.Exit(1)
	}

	samples, err := stores.LoadDst(cfg.Ingest.DstPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading dst: %v\n", err)
		os.Exit(1)
	}
	index, err := timeseries.FromIndex(samples, cfg.Ingest.Magnitude)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building index series: %v\n", err)
		os.Exit(1)
	}

	var windows []*domain.EventWindow
	matched := false
	for _, set := range cfg.WindowSets() {
		if *label != "" && set.Label != *label {
			continue
		}
		matched = true
		ws, err := window.Derive(index, set)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error deriving %s: %v\n", set.Label, err)
			os.Exit(1)
		}
		observability.RecordWindows(set.Label, len(ws))
		if len(ws) > 0 {
			fmt.Fprintf(os.Stderr, "%s: %d windows (threshold %.2f nT)\n", set.Label, len(ws), ws[0].Threshold)
		} else {
			fmt.Fprintf(os.Stderr, "%s: no windows\n", set.Label)
		}
		windows = append(windows, ws...)
	}
	if !matched {
		fmt.Fprintf(os.Stderr, "Error: no window set labelled %q\n", *label)
		os.Exit(1)
	}

	sort.SliceStable(windows, func(i, j int) bool {
		if windows[i].Label != windows[j].Label {
			return windows[i].Label < windows[j].Label
		}
		return windows[i].Start.Before(windows[j].Start)
	})

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", *out, err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	if err := reporting.WriteWindowsCSV(w, windows); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing windows: %v\n", err)
		os.Exit(1)
	}
}

