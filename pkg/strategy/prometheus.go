package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports the strategy metrics through a Prometheus
// registry. Counter names become the "event" label on a single counter
// family; latency observations go to one histogram family.
type PrometheusRecorder struct {
	events  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewPrometheusRecorder builds a recorder and registers its collectors with
// reg. Registering two recorders on the same registry fails inside
// MustRegister, so build one per process.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_events_total",
			Help: "Rate limiter events by strategy and result.",
		}, []string{"event", "strategy", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ratelimit_operation_duration_seconds",
			Help:    "Latency of rate limiter storage round trips.",
			Buckets: prometheus.DefBuckets,
		}, []string{"event", "strategy"}),
	}

	reg.MustRegister(r.events, r.latency)

	return r
}

func (r *PrometheusRecorder) Add(name string, value float64, tags map[string]string) {
	r.events.WithLabelValues(name, tags["strategy"], tags["result"]).Add(value)
}

func (r *PrometheusRecorder) Observe(name string, value float64, tags map[string]string) {
	r.latency.WithLabelValues(name, tags["strategy"]).Observe(value)
}
