package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Distribution metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhawk_events_published_total",
			Help: "Total number of events passed to outbound distribution",
		},
		[]string{"kind"},
	)

	EnvelopesEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhawk_events_envelopes_enqueued_total",
			Help: "Total number of delivery envelopes offered to the outbound queue",
		},
		[]string{"status"},
	)

	AuthorizationDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhawk_events_authorization_decisions_total",
			Help: "Total number of consumer authorization decisions during distribution",
		},
		[]string{"decision"},
	)

	DistributionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventhawk_events_distribution_duration_seconds",
			Help:    "Duration of PostOutbound in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Cache metrics
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhawk_events_cache_lookups_total",
			Help: "Total number of read-through cache lookups",
		},
		[]string{"cache", "result"},
	)

	// Webhook metrics
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhawk_events_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts",
		},
		[]string{"status"},
	)

	WebhookDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventhawk_events_webhook_duration_seconds",
			Help:    "Duration of webhook POST requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Subscription metrics
	SubscriptionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhawk_events_subscriptions_created_total",
			Help: "Total number of subscriptions created",
		},
		[]string{"variant"},
	)

	SubscriptionsValidatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventhawk_events_subscriptions_validated_total",
			Help: "Total number of subscriptions marked as validated",
		},
	)

	// Worker metrics
	WorkerMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventhawk_events_worker_messages_total",
			Help: "Total number of queue messages processed by workers",
		},
		[]string{"worker", "status"},
	)
)
