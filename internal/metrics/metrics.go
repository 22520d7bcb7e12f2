// Package metrics records delivery, reconciliation and polling activity as
// Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is implemented by Collector and Nop.
type Recorder interface {
	RecordDelivery(outcome, reason string, d time.Duration)
	RecordReconcileFailure(collection string)
	RecordPoll(task string, err error)
}

// Collector records metrics into a Prometheus registry.
type Collector struct {
	deliveries      *prometheus.CounterVec
	deliveryLatency prometheus.Histogram
	reconcileFail   *prometheus.CounterVec
	polls           *prometheus.CounterVec
}

// NewCollector returns a Collector registered with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_deliveries_total",
			Help: "Inbox deliveries by outcome and reason.",
		}, []string{"outcome", "reason"}),
		deliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "courier_delivery_seconds",
			Help:    "Time taken to deliver to a single inbox.",
			Buckets: prometheus.DefBuckets,
		}),
		reconcileFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_reconcile_failures_total",
			Help: "Collection page fetches that failed and reset the view.",
		}, []string{"collection"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_polls_total",
			Help: "Scheduled task runs by task and result.",
		}, []string{"task", "result"}),
	}

	reg.MustRegister(
		c.deliveries,
		c.deliveryLatency,
		c.reconcileFail,
		c.polls,
	)

	return c
}

func (c *Collector) RecordDelivery(outcome, reason string, d time.Duration) {
	c.deliveries.WithLabelValues(outcome, reason).Inc()
	c.deliveryLatency.Observe(d.Seconds())
}

func (c *Collector) RecordReconcileFailure(collection string) {
	c.reconcileFail.WithLabelValues(collection).Inc()
}

func (c *Collector) RecordPoll(task string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.polls.WithLabelValues(task, result).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordDelivery(string, string, time.Duration) {}
func (Nop) RecordReconcileFailure(string)                {}
func (Nop) RecordPoll(string, error)                     {}

// OrNop returns r, or Nop if r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
