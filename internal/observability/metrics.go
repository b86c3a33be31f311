// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingest metrics
	IndexSamplesIngested prometheus.Counter
	ElementSetsIngested  prometheus.Counter
	IngestErrors         *prometheus.CounterVec
	EntitiesDropped      *prometheus.CounterVec

	// Window metrics
	WindowsExtracted *prometheus.CounterVec

	// Measurement metrics
	TracesMeasured    prometheus.Counter
	MeasurementSkips  *prometheus.CounterVec
	DeviationPoints   *prometheus.CounterVec
	Classifications   *prometheus.CounterVec
	WorkerJobsRunning prometheus.Gauge
	WorkerJobLatency  prometheus.Histogram

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	ReportsGenerated  *prometheus.CounterVec
	ArchiveUploads    *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	LastSuccessfulPipeline  prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates a new Metrics instance registered with reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "storm_decay_lab"
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Ingest metrics
		IndexSamplesIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "index_samples_total",
			Help:      "Total number of geomagnetic index samples ingested",
		}),
		ElementSetsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "element_sets_total",
			Help:      "Total number of element sets ingested",
		}),
		IngestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "errors_total",
			Help:      "Total number of ingest errors by source and type",
		}, []string{"source", "error_type"}),
		EntitiesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "entities_dropped_total",
			Help:      "Total number of satellites dropped during cleaning by reason",
		}, []string{"reason"}),

		// Window metrics
		WindowsExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "windows",
			Name:      "extracted_total",
			Help:      "Total number of merged event windows by window set",
		}, []string{"label"}),

		// Measurement metrics
		TracesMeasured: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "measure",
			Name:      "traces_total",
			Help:      "Total number of deviation traces measured",
		}),
		MeasurementSkips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "measure",
			Name:      "skips_total",
			Help:      "Total number of skipped (entity, window) pairs by reason",
		}, []string{"reason"}),
		DeviationPoints: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "measure",
			Name:      "points_total",
			Help:      "Total number of trace points by deviation status",
		}, []string{"status"}),
		Classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "traces_total",
			Help:      "Total number of classified traces by class",
		}, []string{"class"}),
		WorkerJobsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "measure",
			Name:      "jobs_running",
			Help:      "Number of measurement jobs currently executing",
		}),
		WorkerJobLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "measure",
			Name:      "job_latency_seconds",
			Help:      "Latency of a single (entity, window) measurement job",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}),

		// Pipeline metrics
		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"phase", "status"}),
		PipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		ReportsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reports_generated_total",
			Help:      "Total number of report files written by format",
		}, []string{"format"}),
		ArchiveUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "archive_uploads_total",
			Help:      "Total number of object store uploads by status",
		}, []string{"status"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulIngestion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
		LastSuccessfulPipeline: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordIndexIngested adds n to the index samples counter.
func RecordIndexIngested(n int) {
	DefaultMetrics.IndexSamplesIngested.Add(float64(n))
}

// RecordElementsIngested adds n to the element sets counter.
func RecordElementsIngested(n int) {
	DefaultMetrics.ElementSetsIngested.Add(float64(n))
}

// RecordIngestError records an ingest error.
func RecordIngestError(source, errorType string) {
	DefaultMetrics.IngestErrors.WithLabelValues(source, errorType).Inc()
}

// RecordEntityDropped records a satellite dropped during cleaning.
func RecordEntityDropped(reason string) {
	DefaultMetrics.EntitiesDropped.WithLabelValues(reason).Inc()
}

// RecordWindows adds n merged windows for a window set.
func RecordWindows(label string, n int) {
	DefaultMetrics.WindowsExtracted.WithLabelValues(label).Add(float64(n))
}

// RecordTrace records one measured trace with the status of each point.
func RecordTrace(statuses []string) {
	DefaultMetrics.TracesMeasured.Inc()
	for _, s := range statuses {
		DefaultMetrics.DeviationPoints.WithLabelValues(s).Inc()
	}
}

// RecordSkip records a skipped (entity, window) pair.
func RecordSkip(reason string) {
	DefaultMetrics.MeasurementSkips.WithLabelValues(reason).Inc()
}

// RecordClassification records one classified trace.
func RecordClassification(class string) {
	DefaultMetrics.Classifications.WithLabelValues(class).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPipelineRun records a pipeline run.
func RecordPipelineRun(phase, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordReport records a written report file.
func RecordReport(format string) {
	DefaultMetrics.ReportsGenerated.WithLabelValues(format).Inc()
}

// RecordUpload records an object store upload attempt.
func RecordUpload(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.ArchiveUploads.WithLabelValues(status).Inc()
}
