package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	builds      *prometheus.CounterVec
	fetchErrors *prometheus.CounterVec
	lastValue   *prometheus.GaugeVec
	decisions   *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered on reg. A nil reg means the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		builds: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bandpilot_series_builds_total",
				Help: "Series builds by key and result",
			},
			[]string{"key", "result"},
		),
		fetchErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bandpilot_series_fetch_errors_total",
				Help: "Provider fetch failures by series key",
			},
			[]string{"key"},
		),
		lastValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bandpilot_last_value",
				Help: "Newest primary value of a series",
			},
			[]string{"series"},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bandpilot_decisions_total",
				Help: "Strategy decisions by side",
			},
			[]string{"strategy", "side"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bandpilot_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordBuild counts a series build outcome.
func (r *Recorder) RecordBuild(key, result string) {
	r.builds.WithLabelValues(key, result).Inc()
}

// RecordFetchError counts a failed provider fetch.
func (r *Recorder) RecordFetchError(key string) {
	r.fetchErrors.WithLabelValues(key).Inc()
}

// RecordLastValue records the newest value of a series.
func (r *Recorder) RecordLastValue(series string, v float64) {
	r.lastValue.WithLabelValues(series).Set(v)
}

// RecordDecision counts a strategy decision.
func (r *Recorder) RecordDecision(strategy, side string) {
	r.decisions.WithLabelValues(strategy, side).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordBuild(string, string)      {}
func (Nop) RecordFetchError(string)         {}
func (Nop) RecordLastValue(string, float64) {}
func (Nop) RecordDecision(string, string)   {}
func (Nop) RecordLatency(string, float64)   {}
