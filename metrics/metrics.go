package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Delivery metrics
	DeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loxodon_deliveries_total",
			Help: "Total number of successful inbox deliveries",
		},
	)

	DeliveriesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loxodon_deliveries_failed_total",
			Help: "Total number of failed delivery attempts (left to queue redelivery)",
		},
	)

	// Deliveries dropped because the recipient actor could not be resolved.
	// These are not retried; the counter exists so the drop policy stays visible.
	DeliveriesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loxodon_deliveries_dropped_total",
			Help: "Total number of deliveries dropped for unresolvable recipients",
		},
	)

	MessagesEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loxodon_delivery_messages_enqueued_total",
			Help: "Total number of deliver messages enqueued during fan-out",
		},
	)

	// Timeline metrics
	TimelinesPregenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loxodon_timelines_pregenerated_total",
			Help: "Total number of home timelines written to the cache",
		},
	)
)
