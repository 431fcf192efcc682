package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestEngineMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewEngineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.OrderSubmitted(ctx, "p1")
	m.OrderSubmitted(ctx, "p1")
	m.Transition(ctx, "QUOTED", "CONFIRMED")
	m.Scan(ctx, "INBOUND", true)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	got := map[string]int64{}
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		for _, dp := range sum.DataPoints {
			got[metric.Name] += dp.Value
		}
	}
	assert.Equal(t, int64(2), got["assetflow.orders.submitted"])
	assert.Equal(t, int64(1), got["assetflow.orders.transitions"])
	assert.Equal(t, int64(1), got["assetflow.scans"])
}

func TestDefaultEngineMetricsIsUsableWithoutProvider(t *testing.T) {
	m := DefaultEngineMetrics()
	assert.NotPanics(t, func() { m.ReskinCompleted(context.Background()) })
}
