package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "smm-panel-api"

// Metrics holds the business counters exported over OTLP. A nil *Metrics
// records nothing.
type Metrics struct {
	ordersPlaced    metric.Int64Counter
	orderRevenue    metric.Int64Counter
	paymentsCreated metric.Int64Counter
	webhookEvents   metric.Int64Counter
	ledgerRefunds   metric.Int64Counter
}

// NewMetrics registers the counters on the global meter provider
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	ordersPlaced, err := meter.Int64Counter("smm.orders.placed",
		metric.WithDescription("Orders placed and paid from balance"))
	if err != nil {
		return nil, err
	}
	orderRevenue, err := meter.Int64Counter("smm.orders.revenue",
		metric.WithDescription("Order totals debited from balances"),
		metric.WithUnit("{centime}"))
	if err != nil {
		return nil, err
	}
	paymentsCreated, err := meter.Int64Counter("smm.payments.created",
		metric.WithDescription("Gateway checkouts opened"))
	if err != nil {
		return nil, err
	}
	webhookEvents, err := meter.Int64Counter("smm.webhook.events",
		metric.WithDescription("Gateway webhook deliveries by outcome"))
	if err != nil {
		return nil, err
	}
	ledgerRefunds, err := meter.Int64Counter("smm.ledger.refunds",
		metric.WithDescription("Amounts refunded to balances"),
		metric.WithUnit("{centime}"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ordersPlaced:    ordersPlaced,
		orderRevenue:    orderRevenue,
		paymentsCreated: paymentsCreated,
		webhookEvents:   webhookEvents,
		ledgerRefunds:   ledgerRefunds,
	}, nil
}

func (m *Metrics) OrderPlaced(ctx context.Context, platform string, amount int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("platform", platform))
	m.ordersPlaced.Add(ctx, 1, attrs)
	m.orderRevenue.Add(ctx, amount, attrs)
}

func (m *Metrics) PaymentCreated(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.paymentsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}

func (m *Metrics) WebhookProcessed(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", eventType),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) Refunded(ctx context.Context, amount int64) {
	if m == nil {
		return
	}
	m.ledgerRefunds.Add(ctx, amount)
}
