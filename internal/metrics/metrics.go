// Package metrics exposes Prometheus counters for indexer traffic, sync runs
// and broadcasts. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sync run results.
const (
	ResultConverged  = "converged"
	ResultExhausted  = "exhausted"
	ResultUnchanged  = "unchanged"
	ResultDivergence = "divergence"
	ResultError      = "error"
)

// Metrics holds the wallet's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	IndexerRequests *prometheus.CounterVec
	IndexerLatency  *prometheus.HistogramVec
	SyncPages       *prometheus.CounterVec
	SyncWritten     *prometheus.CounterVec
	SyncDeleted     *prometheus.CounterVec
	SyncSkipped     *prometheus.CounterVec
	SyncRuns        *prometheus.CounterVec
	SyncDuration    *prometheus.HistogramVec
	Broadcasts      *prometheus.CounterVec
}

// New creates and registers the wallet metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		IndexerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbcwallet_indexer_requests_total",
				Help: "Indexer HTTP requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		IndexerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tbcwallet_indexer_request_seconds",
				Help:    "Latency of indexer HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		SyncPages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbcwallet_sync_pages_total",
				Help: "Pages fetched by the sync engine",
			},
			[]string{"entity"},
		),
		SyncWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbcwallet_sync_records_written_total",
				Help: "Records inserted or updated by the sync engine",
			},
			[]string{"entity"},
		),
		SyncDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbcwallet_sync_records_deleted_total",
				Help: "Records soft-deleted by reconciliation",
			},
			[]string{"entity"},
		),
		SyncSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbcwallet_sync_records_skipped_total",
				Help: "Records skipped after a local store failure",
			},
			[]string{"entity"},
		),
		SyncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbcwallet_sync_runs_total",
				Help: "Sync runs by entity and result",
			},
			[]string{"entity", "result"},
		),
		SyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tbcwallet_sync_duration_seconds",
				Help:    "Duration of sync runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entity"},
		),
		Broadcasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tbcwallet_broadcasts_total",
				Help: "Transaction broadcasts by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
	}
	m.registry.MustRegister(
		m.IndexerRequests, m.IndexerLatency,
		m.SyncPages, m.SyncWritten, m.SyncDeleted, m.SyncSkipped,
		m.SyncRuns, m.SyncDuration, m.Broadcasts,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteFile writes all metrics to path in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// ObserveRequest records one indexer request.
func (m *Metrics) ObserveRequest(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.IndexerRequests.WithLabelValues(method, outcome).Inc()
	m.IndexerLatency.WithLabelValues(method).Observe(d.Seconds())
}

// PageFetched counts one fetched page.
func (m *Metrics) PageFetched(entity string) {
	if m == nil {
		return
	}
	m.SyncPages.WithLabelValues(entity).Inc()
}

// RecordWritten counts one written record.
func (m *Metrics) RecordWritten(entity string) {
	if m == nil {
		return
	}
	m.SyncWritten.WithLabelValues(entity).Inc()
}

// RecordDeleted counts one soft-deleted record.
func (m *Metrics) RecordDeleted(entity string) {
	if m == nil {
		return
	}
	m.SyncDeleted.WithLabelValues(entity).Inc()
}

// RecordSkipped counts one record dropped after a store failure.
func (m *Metrics) RecordSkipped(entity string) {
	if m == nil {
		return
	}
	m.SyncSkipped.WithLabelValues(entity).Inc()
}

// SyncRun records the result and duration of one sync run.
func (m *Metrics) SyncRun(entity, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.SyncRuns.WithLabelValues(entity, result).Inc()
	m.SyncDuration.WithLabelValues(entity).Observe(d.Seconds())
}

// Broadcast counts one broadcast attempt.
func (m *Metrics) Broadcast(kind, outcome string) {
	if m == nil {
		return
	}
	m.Broadcasts.WithLabelValues(kind, outcome).Inc()
}
