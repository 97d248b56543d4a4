// Package metrics provides Prometheus metric collection for the realtime core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metric-recording interface consumed by the hub and handlers.
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()
	EventPublished(kind string)
	DeliveryDropped()
	PersistenceFailure(op string)
	FanoutDuration(d time.Duration)
}

// Collector is the Prometheus-backed Recorder implementation.
type Collector struct {
	connectionsActive prometheus.Gauge
	eventsPublished   *prometheus.CounterVec
	deliveriesDropped prometheus.Counter
	persistenceFailed *prometheus.CounterVec
	fanoutDuration    prometheus.Histogram
}

// NewCollector registers the chat metrics on the given registry and returns the collector.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "propchat_connections_active",
			Help: "Number of currently open realtime connections.",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "propchat_events_published_total",
			Help: "Total events published through the fan-out engine, by kind.",
		}, []string{"kind"}),
		deliveriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propchat_deliveries_dropped_total",
			Help: "Events dropped because a target connection's send buffer was full or closed.",
		}),
		persistenceFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "propchat_persistence_failures_total",
			Help: "Durable write failures, by operation.",
		}, []string{"op"}),
		fanoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "propchat_fanout_duration_seconds",
			Help:    "Time spent delivering one event to all targets of its scope.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	reg.MustRegister(
		c.connectionsActive,
		c.eventsPublished,
		c.deliveriesDropped,
		c.persistenceFailed,
		c.fanoutDuration,
	)

	return c
}

// ConnectionOpened increments the active connection gauge.
func (c *Collector) ConnectionOpened() { c.connectionsActive.Inc() }

// ConnectionClosed decrements the active connection gauge.
func (c *Collector) ConnectionClosed() { c.connectionsActive.Dec() }

// EventPublished counts one published event of the given kind.
func (c *Collector) EventPublished(kind string) {
	c.eventsPublished.WithLabelValues(kind).Inc()
}

// DeliveryDropped counts one per-target delivery drop.
func (c *Collector) DeliveryDropped() { c.deliveriesDropped.Inc() }

// PersistenceFailure counts one durable write failure for the given operation.
func (c *Collector) PersistenceFailure(op string) {
	c.persistenceFailed.WithLabelValues(op).Inc()
}

// FanoutDuration records the wall time of a single publish.
func (c *Collector) FanoutDuration(d time.Duration) {
	c.fanoutDuration.Observe(d.Seconds())
}

// Handler returns the HTTP handler that serves the metrics endpoint for the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Nop is a Recorder that discards every observation. Used where metrics are not wired,
// primarily in tests.
type Nop struct{}

func (Nop) ConnectionOpened()            {}
func (Nop) ConnectionClosed()            {}
func (Nop) EventPublished(string)        {}
func (Nop) DeliveryDropped()             {}
func (Nop) PersistenceFailure(string)    {}
func (Nop) FanoutDuration(time.Duration) {}
