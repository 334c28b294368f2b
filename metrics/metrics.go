package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "floor_sync"
)

// Metrics holds the realtime sync metrics shared by hub, router and monitor.
type Metrics struct {
	// Hub metrics
	ConnectionsOpen    prometheus.Gauge
	EventsPublished    *prometheus.CounterVec
	SendFailures       prometheus.Counter
	InboundDropped     *prometheus.CounterVec
	PresenceBroadcasts prometheus.Counter

	// Client-side router metrics
	Refetches       *prometheus.CounterVec
	EventsCoalesced prometheus.Counter

	// Change monitor metrics
	ChangesProcessed prometheus.Counter
	ChangeErrors     prometheus.Counter
}

// New creates and registers all metrics with the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates and registers all metrics with a custom registry.
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		ConnectionsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "hub_connections_open",
				Help:      "Number of open duplex connections on this hub",
			},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hub_events_published_total",
				Help:      "Events fanned out by the hub",
			},
			[]string{"kind"},
		),
		SendFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hub_send_failures_total",
				Help:      "Connections torn down because a send failed or their queue was full",
			},
		),
		InboundDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hub_inbound_dropped_total",
				Help:      "Inbound frames dropped by the hub",
			},
			[]string{"reason"},
		),
		PresenceBroadcasts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hub_presence_broadcasts_total",
				Help:      "Presence snapshots broadcast",
			},
		),
		Refetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "router_refetch_total",
				Help:      "Refetches requested by the invalidation router",
			},
			[]string{"key"},
		),
		EventsCoalesced: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "router_events_coalesced_total",
				Help:      "Invalidations folded into an already scheduled refetch",
			},
		),
		ChangesProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "change_monitor_processed_total",
				Help:      "Outbox rows published by the change monitor",
			},
		),
		ChangeErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "change_monitor_errors_total",
				Help:      "Outbox rows that could not be decoded or published",
			},
		),
	}
}
