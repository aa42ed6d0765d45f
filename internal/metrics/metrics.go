// Package metrics exports engine activity as Prometheus metrics.
//
// A Collector implements engine.Metrics. Pass it to roots with
// engine.WithMetrics; one collector can serve any number of roots.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/shadow/internal/change"
)

const namespace = "shadow"

// Collector holds the engine's metrics.
//
// Thread Safety: Safe for concurrent use. A nil *Collector records nothing.
type Collector struct {
	// recordsTotal counts records enqueued, by record type.
	//
	// Labels:
	//   - type: insert, update, delete, reverse, shuffle
	recordsTotal *prometheus.CounterVec

	flushesTotal          prometheus.Counter
	observerFailuresTotal prometheus.Counter
	flushBatchSize        prometheus.Histogram
	rootsLive             prometheus.Gauge
}

// NewCollector creates the metrics and registers them with reg.
// Panics if any of them is already registered with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		recordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Total change records enqueued by type",
			},
			[]string{"type"},
		),
		flushesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flushes_total",
				Help:      "Total non-empty flushes delivered",
			},
		),
		observerFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "observer_failures_total",
				Help:      "Total observer deliveries that returned an error or panicked",
			},
		),
		flushBatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "flush_batch_size",
				Help:      "Number of records per flush",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		rootsLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "roots_live",
				Help:      "Number of roots created and not yet revoked or collected",
			},
		),
	}

	// Pre-create label values so every type shows up at zero.
	for _, t := range change.AllTypes {
		c.recordsTotal.WithLabelValues(string(t))
	}
	return c
}

// RecordEmitted counts one enqueued record.
func (c *Collector) RecordEmitted(t change.Type) {
	if c == nil {
		return
	}
	label := string(t)
	if !t.Valid() {
		label = "unknown"
	}
	c.recordsTotal.WithLabelValues(label).Inc()
}

// Flushed counts one flush of n records.
func (c *Collector) Flushed(n int) {
	if c == nil {
		return
	}
	c.flushesTotal.Inc()
	c.flushBatchSize.Observe(float64(n))
}

// ObserverFailed counts one failed delivery.
func (c *Collector) ObserverFailed() {
	if c == nil {
		return
	}
	c.observerFailuresTotal.Inc()
}

// RootCreated increments the live root gauge.
func (c *Collector) RootCreated() {
	if c == nil {
		return
	}
	c.rootsLive.Inc()
}

// RootReleased decrements the live root gauge.
func (c *Collector) RootReleased() {
	if c == nil {
		return
	}
	c.rootsLive.Dec()
}
