// Package main provides the long-running service:
// - Ingest (scheduled): re-reads the configured Dst and element-set files
// - Pipeline (scheduled): windows → measurement → classification → reports
// - HTTP: /health, /metrics, /status, /events (websocket)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storm-decay-lab/internal/config"
	"storm-decay-lab/internal/logger"
	"storm-decay-lab/internal/observability"
	"storm-decay-lab/internal/pipeline"
	"storm-decay-lab/internal/stores"
)

// Server holds the scheduled components of the service.
type Server struct {
	cfg      *config.Config
	stores   *stores.Stores
	log      *logger.Log
	entry    *logger.Entry
	events   *eventHub
	interval time.Duration

	// State
	mu              sync.Mutex
	started         time.Time
	lastRun         time.Time
	lastRunID       string
	lastError       string
	lastDataQuality bool
	running         bool

	// Stats
	runs   int
	failed int
}

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML configuration file (defaults when empty)")
	interval := flag.Duration("interval", 6*time.Hour, "Ingest and pipeline run interval")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for /health, /metrics and /status")
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
	if *interval <= 0 {
		fmt.Fprintln(os.Stderr, "Error: --interval must be positive")
		os.Exit(1)
	}

	log := logger.Global()
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
	entry := log.WithComponent("server")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	st, err := stores.Open(ctx, cfg.Database, log)
	if err != nil {
		entry.WithError(err).Fatal("open stores")
	}
	defer st.Close()
	if !st.Persistent {
		entry.Warn("no database configured: every run re-reads the input files into memory")
	}

	server := &Server{
		cfg:      cfg,
		stores:   st,
		log:      log,
		entry:    entry,
		events:   newEventHub(entry.WithComponent("events")),
		interval: *interval,
		started:  time.Now(),
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		entry.WithField("signal", sig.String()).Warn("initiating graceful shutdown")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			entry.WithField("signal", sig.String()).Warn("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			entry.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go server.startHTTPServer(*metricsAddr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		entry.WithError(err).Fatal("server error")
	}
	entry.Info("shutdown complete")
}

// Run executes a cycle immediately and then on every tick until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.entry.WithField("interval", s.interval.String()).Info("starting scheduler")

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle ingests the input files and runs the pipeline once.
// Failures are logged and counted; the next tick tries again.
func (s *Server) runCycle(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.entry.Warn("pipeline already running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	runID, quality, err := s.cycle(ctx)

	s.mu.Lock()
	s.running = false
	s.lastRun = time.Now()
	s.runs++
	if err != nil {
		s.failed++
		s.lastError = err.Error()
	} else {
		s.lastError = ""
		s.lastRunID = runID
		s.lastDataQuality = quality
	}
	s.mu.Unlock()

	ev := CycleEvent{Type: "cycle_completed", RunID: runID, DataQuality: quality, Time: time.Now().UTC()}
	if err != nil {
		ev = CycleEvent{Type: "cycle_failed", Error: err.Error(), Time: ev.Time}
	}
	s.events.Publish(ev)

	if err != nil && ctx.Err() == nil {
		s.entry.WithError(err).Error("cycle failed")
	}
}

func (s *Server) cycle(ctx context.Context) (string, bool, error) {
	start := time.Now()

	// 1. Ingest
	ing, err := s.stores.IngestFiles(ctx, s.cfg.Ingest, s.log)
	if err != nil {
		return "", false, fmt.Errorf("ingest: %w", err)
	}
	s.entry.WithFields(logger.Fields{
		"index_samples":   ing.IndexSamples,
		"element_sets":    ing.ElementSets,
		"skipped_samples": ing.SkippedSamples,
	}).Info("ingest finished")

	// 2. Pipeline
	p, err := pipeline.FromConfig(ctx, s.cfg, s.stores, s.log)
	if err != nil {
		return "", false, fmt.Errorf("build pipeline: %w", err)
	}
	res, err := p.Run(ctx)
	if err != nil {
		return "", false, fmt.Errorf("pipeline: %w", err)
	}

	quality := res.Sufficiency == nil || res.Sufficiency.AllPass
	s.entry.WithFields(logger.Fields{
		"run_id":       res.Run.RunID,
		"entities":     res.Run.Entities,
		"traces":       res.Run.Traces,
		"files":        len(res.Files),
		"uploaded":     len(res.Uploaded),
		"data_quality": quality,
		"duration":     time.Since(start).String(),
	}).Info("cycle completed")

	return res.Run.RunID, quality, nil
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	// Cycle events over websocket
	mux.Handle("/events", s.events)

	s.entry.WithField("addr", addr).Info("starting HTTP server")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.entry.WithError(err).Error("HTTP server failed")
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	Interval        string    `json:"interval"`
	Persistent      bool      `json:"persistent"`
	LastRun         time.Time `json:"last_run,omitempty"`
	LastRunID       string    `json:"last_run_id,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	DataQualityPass bool      `json:"data_quality_pass"`
	Runs            int       `json:"runs"`
	FailedRuns      int       `json:"failed_runs"`
	Running         bool      `json:"running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).String(),
		Interval:        s.interval.String(),
		Persistent:      s.stores.Persistent,
		LastRun:         s.lastRun,
		LastRunID:       s.lastRunID,
		LastError:       s.lastError,
		DataQualityPass: s.lastDataQuality,
		Runs:            s.runs,
		FailedRuns:      s.failed,
		Running:         s.running,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
