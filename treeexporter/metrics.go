package treeexporter

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	spansReceived  prometheus.Counter
	tracesRendered prometheus.Counter
	orphans        prometheus.Counter
	writeErrors    prometheus.Counter
	bufferedTraces prometheus.Gauge
}

// newMetrics creates the exporter's collectors and registers them with reg
// when it is not nil. Registering twice with the same registry panics.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		spansReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stdouttree_spans_received_total",
			Help: "A counter of spans handed to the exporter.",
		}),
		tracesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stdouttree_traces_rendered_total",
			Help: "A counter of traces printed to the output.",
		}),
		orphans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stdouttree_orphans_total",
			Help: "A counter of placeholder roots synthesized for missing parents at shutdown.",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stdouttree_write_errors_total",
			Help: "A counter of traces that could not be written to the output.",
		}),
		bufferedTraces: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stdouttree_buffered_traces",
			Help: "A gauge of traces waiting for their root span.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.spansReceived, m.tracesRendered, m.orphans, m.writeErrors, m.bufferedTraces)
	}
	return m
}
