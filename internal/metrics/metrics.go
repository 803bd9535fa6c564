package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kyleking/schema-rag/internal/storage"
)

// Recorder collects sync, retrieval and generation metrics in its own
// registry. A CLI run has no scrape endpoint, so the registry is exported
// as a node_exporter textfile.
type Recorder struct {
	registry *prometheus.Registry

	syncRunsTotal          prometheus.Counter
	syncTablesTotal        *prometheus.CounterVec
	syncDurationSeconds    prometheus.Histogram
	syncLastSuccess        prometheus.Gauge
	indexedTables          prometheus.Gauge
	retrievalRequestsTotal *prometheus.CounterVec
	retrievalResults       prometheus.Histogram
	retrievalLatencyMs     prometheus.Histogram
	generationTotal        *prometheus.CounterVec
}

// NewRecorder creates a Recorder with every collector registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		syncRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "schema_rag_sync_runs_total",
			Help: "Total number of completed sync passes.",
		}),
		syncTablesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schema_rag_sync_tables_total",
			Help: "Tables processed by sync passes, by outcome.",
		}, []string{"status"}),
		syncDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "schema_rag_sync_duration_seconds",
			Help:    "Wall time of sync passes.",
			Buckets: prometheus.DefBuckets,
		}),
		syncLastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "schema_rag_sync_last_success_timestamp_seconds",
			Help: "Unix time of the last sync pass without failures.",
		}),
		indexedTables: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "schema_rag_indexed_tables",
			Help: "Tables present in the index after the last sync pass.",
		}),
		retrievalRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schema_rag_retrieval_requests_total",
			Help: "Retrieval requests, by result.",
		}, []string{"result"}),
		retrievalResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "schema_rag_retrieval_results",
			Help:    "Schemas returned per retrieval.",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		}),
		retrievalLatencyMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "schema_rag_retrieval_latency_ms",
			Help:    "Retrieval latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}),
		generationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schema_rag_sql_generation_total",
			Help: "SQL generation requests, by result.",
		}, []string{"result"}),
	}

	r.registry.MustRegister(
		r.syncRunsTotal,
		r.syncTablesTotal,
		r.syncDurationSeconds,
		r.syncLastSuccess,
		r.indexedTables,
		r.retrievalRequestsTotal,
		r.retrievalResults,
		r.retrievalLatencyMs,
		r.generationTotal,
	)

	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveSync records a completed sync pass
func (r *Recorder) ObserveSync(run storage.SyncRun, duration time.Duration) {
	r.syncRunsTotal.Inc()
	r.syncTablesTotal.WithLabelValues("new").Add(float64(run.New))
	r.syncTablesTotal.WithLabelValues("updated").Add(float64(run.Updated))
	r.syncTablesTotal.WithLabelValues("skipped").Add(float64(run.Skipped))
	r.syncTablesTotal.WithLabelValues("removed").Add(float64(run.Removed))
	r.syncTablesTotal.WithLabelValues("failed").Add(float64(run.Failed))
	r.syncDurationSeconds.Observe(duration.Seconds())

	// failed tables may or may not still be indexed; count what is known present
	r.indexedTables.Set(float64(run.New + run.Updated + run.Skipped))

	if run.Failed == 0 {
		r.syncLastSuccess.Set(float64(run.FinishedAt.Unix()))
	}
}

// ObserveRetrieval records one retrieval request
func (r *Recorder) ObserveRetrieval(duration time.Duration, results int, err error) {
	if err != nil {
		r.retrievalRequestsTotal.WithLabelValues("error").Inc()
		return
	}

	r.retrievalRequestsTotal.WithLabelValues("ok").Inc()
	r.retrievalResults.Observe(float64(results))
	r.retrievalLatencyMs.Observe(float64(duration.Milliseconds()))
}

// ObserveGeneration records one SQL generation request
func (r *Recorder) ObserveGeneration(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	r.generationTotal.WithLabelValues(result).Inc()
}

// WriteTextfile writes the registry in the text exposition format. The
// file is replaced atomically so a collector never reads a partial write.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}

	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}

	return nil
}
