package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RPC metrics
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omg_rpc_requests_total",
			Help: "Total number of RPC requests by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omg_rpc_request_duration_seconds",
			Help:    "RPC request duration in seconds by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "omg_connections_active",
			Help: "Number of currently open domain-socket connections",
		},
	)

	ConnectionsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "omg_connections_rejected_total",
			Help: "Total number of connections refused because the concurrency cap was reached",
		},
	)

	// Status aggregator (SAG) metrics
	StatusRefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omg_status_refresh_duration_seconds",
			Help:    "Time taken for a status refresh cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StatusRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omg_status_refresh_total",
			Help: "Total number of status refreshes by outcome",
		},
		[]string{"outcome"},
	)

	StatusBackendStale = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "omg_status_backend_stale",
			Help: "Whether the last published FastStatus fell back to a stale backend read (1) or not (0)",
		},
	)

	// Cache (PTC) metrics
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omg_cache_hits_total",
			Help: "Total number of PTC cache hits by kind",
		},
		[]string{"kind"},
	)

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omg_cache_misses_total",
			Help: "Total number of PTC cache misses by kind",
		},
		[]string{"kind"},
	)

	CacheEntriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omg_cache_entries",
			Help: "Current number of entries held in PTC by kind",
		},
		[]string{"kind"},
	)

	// Index (PIX) metrics
	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omg_search_duration_seconds",
			Help:    "Time taken to serve a Search request in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SearchCandidatesTotal = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omg_search_candidates_total",
			Help:    "Number of substring-prefilter candidates considered per Search",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
		},
	)

	IndexRebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "omg_index_rebuild_duration_seconds",
			Help:    "Time taken to rebuild the package index in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	IndexPackagesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "omg_index_packages_total",
			Help: "Total number of packages in the current index generation",
		},
	)

	// Backend adapter (BA) metrics
	BackendCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omg_backend_calls_total",
			Help: "Total number of backend adapter calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	BackendCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omg_backend_call_duration_seconds",
			Help:    "Backend adapter call duration in seconds by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		RPCRequestsTotal,
		RPCRequestDuration,
		ConnectionsActive,
		ConnectionsRejectedTotal,
		StatusRefreshDuration,
		StatusRefreshTotal,
		StatusBackendStale,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheEntriesTotal,
		SearchDuration,
		SearchCandidatesTotal,
		IndexRebuildDuration,
		IndexPackagesTotal,
		BackendCallsTotal,
		BackendCallDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
