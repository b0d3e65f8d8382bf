package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "printdesk_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	JobsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "printdesk_jobs_submitted_total",
			Help: "Number of print jobs submitted",
		},
	)

	// JobTransitions counts decisions by target status.
	JobTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printdesk_job_transitions_total",
			Help: "Number of print job status transitions",
		},
		[]string{"status"},
	)

	NotificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printdesk_notifications_created_total",
			Help: "Number of notifications created",
		},
		[]string{"audience"},
	)

	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printdesk_webhook_deliveries_total",
			Help: "Webhook delivery attempts by outcome",
		},
		[]string{"event", "outcome"},
	)

	LiveSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "printdesk_live_subscribers",
			Help: "Number of connected notification websocket clients",
		},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCount,
			RequestDuration,
			JobsSubmitted,
			JobTransitions,
			NotificationsCreated,
			WebhookDeliveries,
			LiveSubscribers,
		)
	})
}
