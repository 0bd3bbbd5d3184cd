package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the order / fulfillment pipeline. Registered on the default
// registry and served by promhttp from the router.
var (
	OrdersMaterialized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bakery",
		Subsystem: "orders",
		Name:      "materialized_total",
		Help:      "Orders durably created from payment confirmations.",
	})

	WebhookReplays = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bakery",
		Subsystem: "orders",
		Name:      "webhook_replays_total",
		Help:      "Duplicate payment confirmations resolved as idempotent no-ops.",
	})

	WebhookIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bakery",
		Subsystem: "orders",
		Name:      "webhook_ignored_total",
		Help:      "Webhook events acknowledged without action (unhandled types).",
	})

	StockConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bakery",
		Subsystem: "inventory",
		Name:      "stock_conflicts_total",
		Help:      "Materializations rolled back because a portion ran out of stock.",
	})

	FulfillmentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bakery",
		Subsystem: "fulfillment",
		Name:      "transitions_total",
		Help:      "Admin workflow transitions by kind and outcome.",
	}, []string{"transition", "outcome"})
)
