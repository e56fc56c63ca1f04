// Package metrics exports handler activity as Prometheus metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/httpbatch/pkg/httpbatch"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "httpbatch"

// Collector is an httpbatch.EventHandler that records flushes, drops and
// state changes. Pass it to httpbatch.WithEventHandler.
type Collector struct {
	httpbatch.BaseEventHandler

	flushes  *prometheus.CounterVec
	events   prometheus.Counter
	bytes    prometheus.Counter
	dropped  prometheus.Counter
	attempts prometheus.Counter
	duration prometheus.Histogram
	state    prometheus.Gauge
}

// New creates a Collector and registers its metrics with reg.
// An empty namespace means DefaultNamespace.
func New(namespace string, reg prometheus.Registerer) (*Collector, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Batches flushed, by trigger and result.",
		}, []string{"trigger", "result"}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushed_events_total",
			Help:      "Events contained in flushed batches.",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sent_bytes_total",
			Help:      "Payload bytes of successfully sent batches.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Events evicted from a full queue.",
		}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests made, retries included.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Time spent dispatching one batch, retries included.",
			Buckets:   prometheus.DefBuckets,
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Current lifecycle state (0 created, 1 running, 2 terminating, 3 terminated, 4 crashed).",
		}),
	}

	for _, m := range []prometheus.Collector{c.flushes, c.events, c.bytes, c.dropped, c.attempts, c.duration, c.state} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// OnFlush records one flush.
func (c *Collector) OnFlush(e httpbatch.FlushEvent) {
	result := "success"
	if e.Err != nil {
		result = "failure"
	} else {
		c.bytes.Add(float64(e.Bytes))
	}
	c.flushes.WithLabelValues(string(e.Trigger), result).Inc()
	c.events.Add(float64(e.Events))
	c.attempts.Add(float64(e.Attempts))
	c.duration.Observe(e.Duration.Seconds())
}

// OnDrop records one evicted event.
func (c *Collector) OnDrop(httpbatch.DropEvent) {
	c.dropped.Inc()
}

// OnStateChange records the new state.
func (c *Collector) OnStateChange(e httpbatch.StateChangeEvent) {
	c.state.Set(float64(e.Current))
}

// RegisterQueueDepth exports the number of events waiting in h's queue.
func RegisterQueueDepth(namespace string, reg prometheus.Registerer, h *httpbatch.Handler) error {
	if h == nil {
		return errors.New("metrics: nil handler")
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queued_events",
		Help:      "Events waiting for the worker.",
	}, func() float64 {
		return float64(h.Stats().Queued)
	}))
}
