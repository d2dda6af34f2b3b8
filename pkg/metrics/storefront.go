package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the hot reconciliation paths. Registered on the default
// registerer so the /metrics handler picks them up without extra wiring.
var (
	// StockOperations counts engine runs by operation (reduce/restore)
	// and result (ok/partial/skipped).
	StockOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_stock_operations_total",
		Help: "Stock engine runs by operation and result.",
	}, []string{"operation", "result"})

	// WebhookDeliveries counts inbound gateway deliveries by event type
	// and terminal delivery status.
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_webhook_deliveries_total",
		Help: "Inbound gateway webhook deliveries by event and status.",
	}, []string{"event", "status"})

	// WebhookDuration observes end-to-end webhook handling time.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_webhook_duration_seconds",
		Help:    "Webhook handling duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event"})

	// PaymentReconciliations counts reconcile outcomes (processed,
	// duplicate, mismatch, error).
	PaymentReconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payment_reconciliations_total",
		Help: "Payment reconciliation outcomes.",
	}, []string{"result"})
)
