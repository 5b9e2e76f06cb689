// Package metrics is the Prometheus collector set exposed at GET /metrics.
// Every collector is registered at startup, but only the dead-letter
// backlog gauge is updated at runtime (by the recovery sweeper, through
// DeadLetterGauge); no package updates the other collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every collector this process registers. A single
// instance is constructed at startup; only its DeadLetterGauge callback is
// handed to another component (the recovery sweeper).
type Registry struct {
	QueueDepth          *prometheus.GaugeVec
	ItemsProcessedTotal *prometheus.CounterVec
	ItemErrorsTotal     *prometheus.CounterVec
	ParserConfidence    *prometheus.HistogramVec
	ActionOutcomeTotal  *prometheus.CounterVec
	DeadLetterBacklog   prometheus.Gauge
	WebhookEventsTotal  *prometheus.CounterVec
}

// NewRegistry constructs and registers every collector against the
// default Prometheus registry, the way promhttp.Handler()'s default
// exposition expects (spec §6 /metrics, mirroring teacher's own
// GET /metrics wiring of promhttp.Handler() at the HTTP layer).
func NewRegistry() *Registry {
	return &Registry{
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chatflow",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Number of action_queue_items currently pending, by priority.",
		}, []string{"priority"}),

		ItemsProcessedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatflow",
			Subsystem: "queue",
			Name:      "items_processed_total",
			Help:      "Queue items completed, by terminal substatus (empty string means plain success).",
		}, []string{"substatus"}),

		ItemErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatflow",
			Subsystem: "queue",
			Name:      "item_errors_total",
			Help:      "Queue items that hit a retryable infrastructure error.",
		}, []string{"event_type"}),

		ParserConfidence: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatflow",
			Subsystem: "nlp",
			Name:      "parser_confidence",
			Help:      "Confidence score distribution per NLP parser type.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"parser_type", "language"}),

		ActionOutcomeTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatflow",
			Subsystem: "action",
			Name:      "outcome_total",
			Help:      "Action executor dispatches, by action_type and outcome (success/error).",
		}, []string{"action_type", "outcome"}),

		DeadLetterBacklog: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatflow",
			Subsystem: "recovery",
			Name:      "dead_letter_backlog",
			Help:      "Number of action_queue_items currently in the dead-letter state.",
		}),

		WebhookEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatflow",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Inbound webhook events processed, by event type and outcome (ok/malformed/failed).",
		}, []string{"event_type", "outcome"}),
	}
}

// Handler exposes the default registry in Prometheus exposition format for
// GET /metrics (spec §6).
func Handler() http.Handler {
	return promhttp.Handler()
}

// DeadLetterGauge returns the callback pkg/recovery.NewSweeper expects to
// report its dead-letter backlog size after each sweep tick.
func (r *Registry) DeadLetterGauge() func(count int) {
	return func(count int) { r.DeadLetterBacklog.Set(float64(count)) }
}
