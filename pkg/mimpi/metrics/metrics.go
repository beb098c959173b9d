// Package metrics exposes the Prometheus instrumentation surface for a
// single world instance: messages sent/received, queue depth and
// collective latency. It is an ambient-concern addition (SPEC_FULL.md
// DOMAIN STACK) beyond spec.md's explicit scope, grounded on
// github.com/prometheus/client_golang as used by nspcc-dev/neo-go and
// dveeden/tiflow.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds one world's collectors. Each World owns its own
// prometheus.Registry instead of registering into the global
// DefaultRegisterer, since a single process (notably the in-process test
// harness) may construct many World instances concurrently and the default
// registerer would reject the resulting duplicate collector names.
type Metrics struct {
	Registry *prometheus.Registry

	MessagesSent      *prometheus.CounterVec
	MessagesReceived  *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
	CollectiveLatency *prometheus.HistogramVec
	RemoteFinished    prometheus.Counter
}

// New builds a fresh, independently-registered Metrics instance for rank.
func New(rank int) *Metrics {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"rank": strconv.Itoa(rank)}

	m := &Metrics{
		Registry: reg,
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mimpi",
			Name:        "messages_sent_total",
			Help:        "Messages sent by this rank, partitioned by tag class.",
			ConstLabels: constLabels,
		}, []string{"class"}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mimpi",
			Name:        "messages_received_total",
			Help:        "Messages received by this rank, partitioned by tag class.",
			ConstLabels: constLabels,
		}, []string{"class"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mimpi",
			Name:        "queue_depth",
			Help:        "Number of buffered messages currently sitting in the queue.",
			ConstLabels: constLabels,
		}),
		CollectiveLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "mimpi",
			Name:        "collective_duration_seconds",
			Help:        "Time spent inside a collective call, by kind.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"kind"}),
		RemoteFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mimpi",
			Name:        "remote_finished_total",
			Help:        "Number of operations that returned ERROR_REMOTE_FINISHED.",
			ConstLabels: constLabels,
		}),
	}

	reg.MustRegister(m.MessagesSent, m.MessagesReceived, m.QueueDepth, m.CollectiveLatency, m.RemoteFinished)
	return m
}

// TagClass buckets a tag into "user", "wildcard" or "control" for metric
// labelling.
func TagClass(tag int32) string {
	switch {
	case tag > 0:
		return "user"
	case tag == 0:
		return "wildcard"
	default:
		return "control"
	}
}
