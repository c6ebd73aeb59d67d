// Package metrics exposes the agent's error-taxonomy counters and
// tracker gauges as Prometheus collectors, grounded on
// pkg/metrics/prometheus.go's explicit-registry shape (a
// *prometheus.Registry plus hand-declared Vec collectors, rather than
// the global promauto default registry).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the agent registers, one field per
// spec §7 taxonomy item that is countable.
type Metrics struct {
	Registry *prometheus.Registry

	// Ingestion-local drops (taxonomy item 1), one counter per event
	// type/reason.
	EventsDropped *prometheus.CounterVec

	// Transport reconnects and send failures (taxonomy item 2).
	TransportReconnects *prometheus.CounterVec
	TransportSendErrors *prometheus.CounterVec

	// Resource-exhaustion evictions (taxonomy item 3).
	TableEvictions *prometheus.CounterVec

	// Rejected config publishes (taxonomy item 4).
	ConfigRejected prometheus.Counter

	// Live table size gauges. Nothing in the agent sets them; the diag
	// server's /status reads table sizes from the trackers directly.
	ConnectionTableSize prometheus.Gauge
	EndpointTableSize   prometheus.Gauge
}

// New creates and registers every collector against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostwatch",
			Subsystem: "ingest",
			Name:      "events_dropped_total",
			Help:      "Raw events dropped before reaching a tracker, by event type and reason.",
		}, []string{"event_type", "reason"}),
		TransportReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostwatch",
			Subsystem: "transport",
			Name:      "reconnects_total",
			Help:      "Outbound RPC stream reconnect attempts.",
		}, []string{"target"}),
		TransportSendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostwatch",
			Subsystem: "transport",
			Name:      "send_errors_total",
			Help:      "Outbound message send failures.",
		}, []string{"target"}),
		TableEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostwatch",
			Subsystem: "tracker",
			Name:      "evictions_total",
			Help:      "Entries evicted from a tracker table under its hard cap.",
		}, []string{"table", "reason"}),
		ConfigRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hostwatch",
			Subsystem: "config",
			Name:      "rejected_total",
			Help:      "Inbound runtime_filtering_configuration messages rejected at publish time.",
		}),
		ConnectionTableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hostwatch",
			Subsystem: "tracker",
			Name:      "connection_table_size",
			Help:      "Current number of live entries in the connection tracker.",
		}),
		EndpointTableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hostwatch",
			Subsystem: "tracker",
			Name:      "endpoint_table_size",
			Help:      "Current number of live entries in the endpoint tracker.",
		}),
	}

	reg.MustRegister(
		m.EventsDropped,
		m.TransportReconnects,
		m.TransportSendErrors,
		m.TableEvictions,
		m.ConfigRejected,
		m.ConnectionTableSize,
		m.EndpointTableSize,
	)
	return m
}

// EvictionCounterFor adapts a table name into the
// connection.EvictionCounter / endpoint.EvictionCounter func
// signature both trackers accept.
func (m *Metrics) EvictionCounterFor(table string) func(reason string, n int) {
	return func(reason string, n int) {
		m.TableEvictions.WithLabelValues(table, reason).Add(float64(n))
	}
}
