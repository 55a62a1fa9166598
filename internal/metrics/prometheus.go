package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type promMetrics struct {
	registry *prometheus.Registry
	duration *prometheus.HistogramVec
	tokenCnt *prometheus.CounterVec
	records  *prometheus.CounterVec
	active   prometheus.Gauge
	finished *prometheus.CounterVec
}

func newPromMetrics() *promMetrics {
	p := &promMetrics{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "talenthub_operation_duration_seconds",
				Help:    "Duration of LLM calls, record operations, batches and session writes",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
			},
			[]string{"operation"},
		),
		tokenCnt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "talenthub_llm_tokens_total",
				Help: "LLM tokens consumed",
			},
			[]string{"direction"},
		),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "talenthub_records_total",
				Help: "Records processed by batch operations",
			},
			[]string{"operation", "outcome"},
		),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "talenthub_sessions_active",
			Help: "Session runs currently in progress",
		}),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "talenthub_sessions_finished_total",
				Help: "Session runs that ended, by kind and final status",
			},
			[]string{"kind", "status"},
		),
	}
	p.registry.MustRegister(p.duration, p.tokenCnt, p.records, p.active, p.finished)
	return p
}

func (p *promMetrics) observe(op string, d time.Duration) {
	p.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (p *promMetrics) tokens(in, out int64) {
	if in > 0 {
		p.tokenCnt.WithLabelValues("input").Add(float64(in))
	}
	if out > 0 {
		p.tokenCnt.WithLabelValues("output").Add(float64(out))
	}
}

// Handler serves the Prometheus exposition format for this collector.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.prom.registry, promhttp.HandlerOpts{})
}
