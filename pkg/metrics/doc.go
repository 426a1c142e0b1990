/*
Package metrics exposes the daemon's Prometheus metrics and HTTP
health/readiness/liveness endpoints.

# Metrics

	omg_rpc_requests_total{kind, outcome}
	omg_rpc_request_duration_seconds{kind}
	omg_connections_active
	omg_connections_rejected_total

	omg_status_refresh_duration_seconds
	omg_status_refresh_total{outcome}
	omg_status_backend_stale

	omg_cache_hits_total{kind}
	omg_cache_misses_total{kind}
	omg_cache_entries{kind}

	omg_search_duration_seconds
	omg_search_candidates_total
	omg_index_rebuild_duration_seconds
	omg_index_packages_total

	omg_backend_calls_total{operation, outcome}
	omg_backend_call_duration_seconds{operation}

# Health

Three components report probes: storage ("pkv", reported by the daemon
server once the database opens and by the cache write-through on a
failure), the backend adapter ("backend", reported by the status
aggregator after each refresh), and the index ("index", reported
alongside it with the current generation). A failing backend only
degrades overall health — the daemon keeps answering from its index —
while a failing storage or index is unhealthy. Readiness additionally
requires every component to have reported healthy at least once.
HealthHandler/ReadyHandler/LivenessHandler expose the snapshots over
HTTP for external supervision (systemd, a sidecar probe) separate from
the domain socket's own protocol.

# Usage

	import "github.com/cuemby/omg/pkg/metrics"

	metrics.SetVersion(buildVersion)
	metrics.Report(metrics.ComponentStorage, true, "open")
	collector := metrics.NewCollector(idx, cache)
	collector.Start()
	defer collector.Stop()

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())

# Example queries

	RPC request rate:        rate(omg_rpc_requests_total[1m])
	RPC error rate:          rate(omg_rpc_requests_total{outcome!="ok"}[1m])
	p95 RPC latency:         histogram_quantile(0.95, omg_rpc_request_duration_seconds_bucket)
	Cache hit ratio:         sum(rate(omg_cache_hits_total[5m])) / (sum(rate(omg_cache_hits_total[5m])) + sum(rate(omg_cache_misses_total[5m])))
	Stale status fallbacks:  max(omg_status_backend_stale) > 0
	Backend failure rate:    rate(omg_backend_calls_total{outcome="error"}[5m])
*/
package metrics
