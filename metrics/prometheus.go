package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports payment counters and latencies under the
// "autotip" namespace.
type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

func NewPrometheusRecorder() Recorder {
	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autotip",
			Name:      "payment_events_total",
			Help:      "tip payment event counters",
		},
		[]string{"type", "interaction"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "autotip",
			Name:      "payment_latency_seconds",
			Help:      "tip payment operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "interaction"},
	)

	prometheus.MustRegister(counters, histogram)

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"type":        name,
		"interaction": labels["interaction"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation":   name,
		"interaction": labels["interaction"],
	}).Observe(d.Seconds())
}
