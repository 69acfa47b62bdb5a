package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/partition"
)

var (
	// Labels: route (path template), method, status.
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hgpart",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route and status",
	}, []string{"route", "method", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hgpart",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"route", "method"})

	// Labels: operation (partition, improve), outcome (ok, balance_violated).
	partitionRuntime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hgpart",
		Subsystem: "engine",
		Name:      "runtime_seconds",
		Help:      "Partitioner runtime per call in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"operation", "outcome"})

	partitionImbalance = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hgpart",
		Subsystem: "engine",
		Name:      "imbalance",
		Help:      "Imbalance of returned partitions",
		Buckets:   []float64{0, 0.01, 0.02, 0.03, 0.05, 0.1, 0.2, 0.5, 1},
	}, []string{"operation"})
)

// MetricsMiddleware records request counts and latencies per route.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		httpLatency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func observeResult(operation string, res *partition.Result) {
	outcome := "ok"
	if res.BalanceViolated {
		outcome = "balance_violated"
	}
	partitionRuntime.WithLabelValues(operation, outcome).Observe(float64(res.RuntimeMS) / 1000)
	partitionImbalance.WithLabelValues(operation).Observe(res.Imbalance)
}
