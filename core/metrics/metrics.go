// Package metrics holds the process-wide prometheus collectors and the
// HTTP listener that exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "deskbot"

var (
	RelayedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_messages_total",
			Help:      "Messages relayed between users and the admin group",
		},
		[]string{"direction"},
	)

	Applications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applications_total",
			Help:      "Applications submitted and decided, by resulting status",
		},
		[]string{"status"},
	)

	FilesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_rejected_total",
			Help:      "Application files refused, by reason",
		},
		[]string{"reason"},
	)

	HandlerTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_total",
			Help:      "Handled Telegram updates by handler and outcome",
		},
		[]string{"handler", "outcome"},
	)

	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Time spent handling a Telegram update",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"handler"},
	)

	TelegramRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_requests_total",
			Help:      "Bot API HTTP round trips by result class",
		},
		[]string{"result"},
	)

	OutboundSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_sends_total",
			Help:      "Queued Telegram API calls by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	OutboundQueue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbound_queue_depth",
			Help:      "Telegram API calls waiting in the outbound queue",
		},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Updates dropped by the per-user rate limiter",
		},
		[]string{"kind"},
	)

	DraftsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drafts_swept_total",
			Help:      "Expired drafts removed by the sweep job",
		},
	)
)
