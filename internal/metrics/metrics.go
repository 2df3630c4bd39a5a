// Package metrics exposes prometheus instrumentation for the ingest and
// broadcast paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	EventsIngested     *prometheus.CounterVec
	ValidationFailures prometheus.Counter
	BroadcastsSent     *prometheus.CounterVec
	SessionsActive     prometheus.Gauge
	Subscribers        prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all collectors on a private registry, so tests
// can construct as many instances as they need without collisions.
func New() *Metrics {
	m := &Metrics{
		EventsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "traffic",
				Subsystem: "ingest",
				Name:      "events_total",
				Help:      "Total traffic events accepted, by source.",
			},
			[]string{"source"},
		),
		ValidationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "traffic",
				Subsystem: "ingest",
				Name:      "validation_failures_total",
				Help:      "Total inbound readings rejected by validation.",
			},
		),
		BroadcastsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "traffic",
				Subsystem: "hub",
				Name:      "broadcasts_total",
				Help:      "Total messages fanned out to the broadcast group, by kind.",
			},
			[]string{"kind"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "traffic",
				Subsystem: "hub",
				Name:      "sessions_active",
				Help:      "Connected websocket sessions.",
			},
		),
		Subscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "traffic",
				Subsystem: "hub",
				Name:      "subscribers",
				Help:      "Sessions currently in the broadcast group.",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.EventsIngested,
		m.ValidationFailures,
		m.BroadcastsSent,
		m.SessionsActive,
		m.Subscribers,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
