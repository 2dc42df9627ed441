// Package metrics exposes homiewatch counters and tree gauges to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/homiewatch/internal/homie"
)

const namespace = "homiewatch"

// Entity kinds used as the "kind" label.
const (
	KindDevice   = "device"
	KindNode     = "node"
	KindProperty = "property"
)

// Message results used as the "result" label.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
)

// Metrics holds the Prometheus collectors for one service instance.
type Metrics struct {
	registry *prometheus.Registry

	messages    *prometheus.CounterVec
	discoveries *prometheus.CounterVec
	updates     *prometheus.CounterVec
	sinkErrors  *prometheus.CounterVec
}

// New creates the collectors on a private registry. stats is sampled at
// scrape time for the tree gauges; nil leaves them out.
func New(stats func() homie.Stats) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "messages_total",
			Help:      "MQTT messages submitted to the discovery tree",
		}, []string{"result"}),

		discoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "homie",
			Name:      "discoveries_total",
			Help:      "Entities that completed discovery",
		}, []string{"kind"}),

		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "homie",
			Name:      "updates_total",
			Help:      "Attribute and value updates on discovered entities",
		}, []string{"kind"}),

		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed writes to event sinks",
		}, []string{"sink"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messages,
		m.discoveries,
		m.updates,
		m.sinkErrors,
	)

	if stats != nil {
		m.registry.MustRegister(treeGauges(stats)...)
	}

	return m
}

func treeGauges(stats func() homie.Stats) []prometheus.Collector {
	gauge := func(name, help string, value func(homie.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "homie",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(stats()) })
	}

	return []prometheus.Collector{
		gauge("devices", "Devices that completed discovery", func(s homie.Stats) float64 { return float64(s.Devices) }),
		gauge("devices_ready", "Discovered devices that are ready", func(s homie.Stats) float64 { return float64(s.ReadyDevices) }),
		gauge("devices_pending", "Devices still collecting attributes", func(s homie.Stats) float64 { return float64(s.PendingDevices) }),
		gauge("nodes", "Nodes that completed discovery", func(s homie.Stats) float64 { return float64(s.Nodes) }),
		gauge("nodes_pending", "Announced nodes still collecting attributes", func(s homie.Stats) float64 { return float64(s.PendingNodes) }),
		gauge("properties", "Properties that completed discovery", func(s homie.Stats) float64 { return float64(s.Properties) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "homie",
			Name:      "handler_panics_total",
			Help:      "Event handler panics recovered",
		}, func() float64 { return float64(stats().HandlerPanics) }),
	}
}

// Message counts one submitted message.
func (m *Metrics) Message(accepted bool) {
	if accepted {
		m.messages.WithLabelValues(ResultAccepted).Inc()
		return
	}
	m.messages.WithLabelValues(ResultRejected).Inc()
}

// Discovered counts a discovery of the given kind.
func (m *Metrics) Discovered(kind string) {
	m.discoveries.WithLabelValues(kind).Inc()
}

// Updated counts an update of the given kind.
func (m *Metrics) Updated(kind string) {
	m.updates.WithLabelValues(kind).Inc()
}

// SinkError counts a failed write to sink.
func (m *Metrics) SinkError(sink string) {
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
