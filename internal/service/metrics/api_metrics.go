package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bandpilot",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of band endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bandpilot",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by band endpoint",
		},
		[]string{"endpoint"},
	)

	ClassifierCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bandpilot",
			Subsystem: "api",
			Name:      "classifier_cache_total",
			Help:      "Classifier cache lookups by result",
		},
		[]string{"classifier", "result"},
	)
)

// Register adds the API collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, ClassifierCacheHits)
	})
}
