// Package metrics exposes controller counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "artnet"

// Metrics holds the controller collectors.
type Metrics struct {
	PacketsReceived *prometheus.CounterVec
	PacketsIgnored  prometheus.Counter
	HandlersDropped *prometheus.CounterVec
	PacketsSent     *prometheus.CounterVec
	SendDropped     prometheus.Counter
	TransportFaults *prometheus.CounterVec
	Universes       prometheus.Gauge
	Nodes           prometheus.Gauge
	TickDuration    prometheus.Histogram
}

// New registers the collectors with reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		PacketsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Decoded Art-Net packets by opcode",
		}, []string{"opcode"}),
		PacketsIgnored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_ignored_total",
			Help:      "Datagrams that were not a supported Art-Net packet",
		}),
		HandlersDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handlers_dropped_total",
			Help:      "Received packets dropped because every handler worker was busy",
		}, []string{"opcode"}),
		PacketsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Art-Net packets queued for sending by opcode",
		}, []string{"opcode"}),
		SendDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_dropped_total",
			Help:      "Packets rejected by a full or closed send queue",
		}),
		TransportFaults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_faults_total",
			Help:      "Socket errors by loop",
		}, []string{"loop"}),
		Universes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "universes",
			Help:      "Active output universes",
		}),
		Nodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes",
			Help:      "Nodes seen in poll replies",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_tick_seconds",
			Help:      "Duration of one scheduler tick",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
	}
}
