// Package metrics exposes the harvester's Prometheus metrics.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, harvest, scheduler) via promauto and land in the default
// registry; this package serves them.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by the harvester.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler for /metrics (default gatherer) and
// /health.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	return mux
}

// Serve serves Handler on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		<-errCh
		return nil
	}
}

// Metrics Documentation
//
// Gate Metrics (pkg/ratelimit):
//   - poi_gate_in_flight (Gauge): Requests currently admitted
//   - poi_gate_admissions_total (Counter): Requests admitted
//   - poi_gate_wait_seconds (Histogram): Time spent waiting for admission
//
// Cache Metrics (pkg/cache):
//   - poi_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - poi_cache_misses_total (Counter): Cache misses
//   - poi_cache_size_bytes{layer="redis"} (Gauge): Bytes written to the cache
//   - poi_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - poi_requests_total{outcome} (Counter): Requests by classified outcome
//   - poi_request_duration_seconds (Histogram): Request duration
//   - poi_errors_total{class} (Counter): Failed requests by error class
//   - poi_retries_total{error_class} (Counter): Transport retries
//   - poi_retry_exhausted_total (Counter): Pages whose query ran out of retries
//   - poi_congestion_waits_total (Counter): Congestion responses waited out
//
// Harvest Metrics (pkg/harvest):
//   - poi_pages_total (Counter): Pages parsed
//   - poi_records_total (Counter): Records harvested
//   - poi_parse_failures_total (Counter): Malformed items skipped
//   - poi_query_duration_seconds (Histogram): Time to harvest one query
//
// Scheduler Metrics (pkg/scheduler):
//   - poi_queries_total{state, reason} (Counter): Finished queries
//   - poi_active_queries (Gauge): Queries in progress
//   - poi_storage_failures_total (Counter): Results not stored
//   - poi_worker_panics_total (Counter): Recovered worker panics
//   - poi_queries_abandoned_total (Counter): Queries abandoned after a panic
//
// Example Prometheus Queries:
//
//   # Congestion rate
//   rate(poi_congestion_waits_total[5m])
//
//   # Gate saturation
//   poi_gate_in_flight
//
//   # Aborted queries
//   sum by (reason) (poi_queries_total{state="aborted"})
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(poi_request_duration_seconds_bucket[5m]))
