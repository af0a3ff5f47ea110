package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scenarioLabel atomic.Value

func init() {
	scenarioLabel.Store("baseline")
}

func SetScenario(s string) {
	if s == "" {
		s = "baseline"
	}
	scenarioLabel.Store(s)
}

func getScenario() string {
	if v := scenarioLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "baseline"
}

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status", "scenario"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status", "scenario"},
	)

	extractionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_duration_seconds",
			Help:    "End-to-end duration of an extraction query.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"mode", "outcome", "scenario"},
	)

	extractionRows = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_result_rows",
			Help:    "Rows in extraction results.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"mode"},
	)

	storeFetchSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_fetch_duration_seconds",
			Help:    "Latency of store fetches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"backend", "kind", "outcome"},
	)

	storeFetchRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_fetch_rows_total",
			Help: "Rows returned by store fetches.",
		},
		[]string{"backend", "kind"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache results by outcome.",
		},
		[]string{"outcome", "scenario"},
	)

	cacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_ops_total",
			Help: "Redis operations by op and result.",
		},
		[]string{"op", "result"},
	)

	cacheOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Latency of Redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		extractionDurationSeconds,
		extractionRows,
		storeFetchSeconds,
		storeFetchRows,
		cacheResults,
		cacheOps,
		cacheOpDurationSeconds,
	}
}

// Init additionally exposes the service metrics on reg. They stay registered
// on the default registry as well.
func Init(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	s := getScenario()
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st, s).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st, s).Observe(durationSeconds)
}

func ObserveExtraction(mode string, err error, rows int, durationSeconds float64) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case rows == 0:
		outcome = "empty"
	}
	extractionDurationSeconds.WithLabelValues(mode, outcome, getScenario()).Observe(durationSeconds)
	if err == nil {
		extractionRows.WithLabelValues(mode).Observe(float64(rows))
	}
}

func ObserveStoreFetch(backend, kind string, err error, rows int, durationSeconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storeFetchSeconds.WithLabelValues(backend, kind, outcome).Observe(durationSeconds)
	if rows > 0 {
		storeFetchRows.WithLabelValues(backend, kind).Add(float64(rows))
	}
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOps.WithLabelValues(op, result).Inc()
	cacheOpDurationSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func IncCacheHit(scenario string) {
	s := scenario
	if s == "" {
		s = getScenario()
	}
	cacheResults.WithLabelValues("hit", s).Inc()
}

func IncCacheMiss(scenario string) {
	s := scenario
	if s == "" {
		s = getScenario()
	}
	cacheResults.WithLabelValues("miss", s).Inc()
}
