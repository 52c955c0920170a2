package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gridmap", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gridmap", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	StoreRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gridmap", Name: "store_requests_total", Help: "Node and price lookups."},
		[]string{"store", "op", "status"},
	)
	StoreLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gridmap", Name: "store_request_duration_seconds",
			Help:    "Node and price lookup duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store", "op"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gridmap", Name: "cache_events_total", Help: "Grid cache hits/misses/sets/dels/errors."},
		[]string{"cache", "event"}, // event: hit|miss|set|del|error
	)
	SkippedNodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gridmap", Name: "skipped_nodes_total", Help: "Nodes left out of a generated grid."},
		[]string{"reason"},
	)
	GridBuildLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gridmap", Name: "grid_build_duration_seconds",
			Help:    "Cell grid generation duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, StoreRequests, StoreLatency, CacheEvents, SkippedNodes, GridBuildLatency)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveStore(store, op string, err error, dur time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreRequests.WithLabelValues(store, op, status).Inc()
	StoreLatency.WithLabelValues(store, op).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del|error
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveSkip(reason string) {
	SkippedNodes.WithLabelValues(reason).Inc()
}

func ObserveGridBuild(dur time.Duration) {
	GridBuildLatency.Observe(dur.Seconds())
}
