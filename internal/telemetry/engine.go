package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EngineMetrics are the business counters of the fulfilment engine.
type EngineMetrics struct {
	ordersSubmitted  metric.Int64Counter
	transitions      metric.Int64Counter
	ordersCancelled  metric.Int64Counter
	reskinsCompleted metric.Int64Counter
	scans            metric.Int64Counter
}

func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	var m EngineMetrics
	var err error
	if m.ordersSubmitted, err = meter.Int64Counter("assetflow.orders.submitted",
		metric.WithDescription("Orders accepted into pricing review")); err != nil {
		return nil, err
	}
	if m.transitions, err = meter.Int64Counter("assetflow.orders.transitions",
		metric.WithDescription("Order status transitions")); err != nil {
		return nil, err
	}
	if m.ordersCancelled, err = meter.Int64Counter("assetflow.orders.cancelled",
		metric.WithDescription("Orders cancelled")); err != nil {
		return nil, err
	}
	if m.reskinsCompleted, err = meter.Int64Counter("assetflow.reskins.completed",
		metric.WithDescription("Reskin requests completed")); err != nil {
		return nil, err
	}
	if m.scans, err = meter.Int64Counter("assetflow.scans",
		metric.WithDescription("Scan events recorded")); err != nil {
		return nil, err
	}
	return &m, nil
}

// DefaultEngineMetrics builds the counters on the global MeterProvider,
// which is a no-op until InitMeterProvider runs.
func DefaultEngineMetrics() *EngineMetrics {
	m, err := NewEngineMetrics(otel.Meter("assetflow"))
	if err != nil {
		panic(err)
	}
	return m
}

func (m *EngineMetrics) OrderSubmitted(ctx context.Context, platformID string) {
	m.ordersSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("platform_id", platformID)))
}

func (m *EngineMetrics) Transition(ctx context.Context, from, to string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("from", from), attribute.String("to", to)))
}

func (m *EngineMetrics) OrderCancelled(ctx context.Context, reason string) {
	m.ordersCancelled.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *EngineMetrics) ReskinCompleted(ctx context.Context) {
	m.reskinsCompleted.Add(ctx, 1)
}

func (m *EngineMetrics) Scan(ctx context.Context, scanType string, discrepancy bool) {
	m.scans.Add(ctx, 1, metric.WithAttributes(attribute.String("scan_type", scanType), attribute.Bool("discrepancy", discrepancy)))
}
