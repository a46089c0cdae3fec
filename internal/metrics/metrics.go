package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's prometheus collectors on a private registry
// so repeated logging sessions in one process never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	LinesDecoded    prometheus.Counter
	DecodeErrors    prometheus.Counter
	SamplesDropped  prometheus.Counter
	Reconnects      prometheus.Counter
	Flushes         prometheus.Counter
	FlushFailures   prometheus.Counter
	BufferedSamples prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		LinesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flukelog_lines_decoded_total",
			Help: "Instrument lines successfully decoded into samples.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flukelog_decode_errors_total",
			Help: "Instrument lines dropped due to decode errors.",
		}),
		SamplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flukelog_samples_dropped_total",
			Help: "Decoded samples dropped because the sample channel stayed full.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flukelog_reconnects_total",
			Help: "Mid-session serial reconnect attempts.",
		}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flukelog_flushes_total",
			Help: "Successful persistence flushes.",
		}),
		FlushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flukelog_flush_failures_total",
			Help: "Flush attempts that failed and kept their buffer for retry.",
		}),
		BufferedSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flukelog_buffered_samples",
			Help: "Samples held in memory since the last successful flush.",
		}),
	}

	m.registry.MustRegister(
		m.LinesDecoded,
		m.DecodeErrors,
		m.SamplesDropped,
		m.Reconnects,
		m.Flushes,
		m.FlushFailures,
		m.BufferedSamples,
	)
	return m
}

// Handler exposes the registry for an optional /metrics listener.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
