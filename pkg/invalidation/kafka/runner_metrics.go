package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricSet is per runner so tests can register a fresh set each time.
type metricSet struct {
	msgs     *prometheus.CounterVec
	apply    *prometheus.CounterVec
	gen      *prometheus.GaugeVec
	proc     prometheus.Histogram
	lagGauge prometheus.Gauge
}

func newMetricSet(r prometheus.Registerer) *metricSet {
	m := &metricSet{
		msgs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Ingest events consumed, by result (ok, error, invalid).",
		}, []string{"result"}),
		apply: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invalidation_actions_total",
			Help: "Per-variable invalidation actions (bump, skip_version).",
		}, []string{"variable", "action"}),
		gen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "invalidation_cache_generation",
			Help: "Cache generation after the last bump of each variable.",
		}, []string{"variable"}),
		proc: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "invalidation_processing_seconds",
			Help:    "Time to decode, dedupe and apply one ingest event.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		lagGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "invalidation_lag_seconds",
			Help: "Now minus the timestamp of the last consumed message.",
		}),
	}
	if r != nil {
		r.MustRegister(m.msgs, m.apply, m.gen, m.proc, m.lagGauge)
	}
	return m
}

func (m *metricSet) action(variable, action string) {
	m.apply.WithLabelValues(variable, action).Inc()
}

func (m *metricSet) bumped(variable string, gen int64) {
	m.action(variable, "bump")
	m.gen.WithLabelValues(variable).Set(float64(gen))
}
