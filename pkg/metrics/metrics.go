// Package metrics exposes the shadow engine's counters and gauges on a
// private prometheus.Registry — not a global one, since this is a library
// with no operator process of its own to own a package-level registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the collectors a Client registers itself against.
// Callers that want to expose them alongside their own metrics can pull
// Registry and hand it to promhttp.HandlerFor, or go through the
// introspect package's built-in /metrics route.
type Metrics struct {
	Registry *prometheus.Registry

	InFlightOccupied *prometheus.GaugeVec
	RequestsTotal    *prometheus.CounterVec
	DeltasTotal      *prometheus.CounterVec
	ReconnectsTotal  prometheus.Counter
}

// New creates a Metrics bundle with a fresh, private registry and
// registers every collector against it.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		InFlightOccupied: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shadow_inflight_occupied",
				Help: "Current number of occupied in-flight table slots, per client.",
			},
			[]string{"client"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shadow_requests_total",
				Help: "Total shadow requests completed, by action and result.",
			},
			[]string{"action", "result"}, // action: update/get/delete, result: accepted/rejected/timeout
		),
		DeltasTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shadow_deltas_total",
				Help: "Total delta messages dispatched, by result.",
			},
			[]string{"result"}, // result: ok/rejected
		),
		ReconnectsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shadow_reconnects_total",
				Help: "Total number of times the MQTT connection was lost and re-established.",
			},
		),
	}

	reg.MustRegister(m.InFlightOccupied, m.RequestsTotal, m.DeltasTotal, m.ReconnectsTotal)
	return m
}
