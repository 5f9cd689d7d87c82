package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sendBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

	// DispatchRuns counts Matcher+Notifier runs by how they ended.
	DispatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifelink_dispatch_runs_total",
			Help: "Total number of dispatch runs, by stop reason.",
		},
		[]string{"stop_reason"},
	)

	// MatchesFound tracks how many donors qualified per run.
	MatchesFound = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lifelink_dispatch_matches",
			Help:    "Number of eligible donors found per dispatch run.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	NotificationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifelink_notification_attempts_total",
			Help: "Total number of donors contacted, by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)

	NotificationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifelink_notifications_skipped_total",
			Help: "Total number of ranked donors skipped without a send, by reason.",
		},
		[]string{"reason"},
	)

	// SendDuration measures a single channel send.
	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lifelink_notification_send_duration_seconds",
			Help:    "Histogram of channel send duration in seconds, by channel and success status.",
			Buckets: sendBuckets,
		},
		[]string{"channel", "success"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifelink_events_published_total",
			Help: "Total number of domain events published, by routing key and result.",
		},
		[]string{"routing_key", "result"},
	)

	MessagesDeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifelink_messages_dead_lettered_total",
			Help: "Total number of deliveries moved to a dead letter queue, by routing key.",
		},
		[]string{"routing_key"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifelink_http_requests_total",
			Help: "Total number of HTTP requests processed, by route pattern and status code.",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lifelink_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by route pattern.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Handler returns the HTTP handler for the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSend records one channel send started at start.
func ObserveSend(channel string, success bool, start time.Time) {
	SendDuration.WithLabelValues(channel, successLabel(success)).Observe(time.Since(start).Seconds())
}

func successLabel(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}
