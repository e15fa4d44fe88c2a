package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectCounts(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					counts[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					counts[m.Name] += int64(dp.Count)
				}
			}
		}
	}
	return counts
}

func TestMetricsRecordedThroughReader(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(noop.NewMeterProvider()) })

	m, err := InitMetrics()
	require.NoError(t, err)

	m.RecordEmbeddingCall("google", "text-embedding-004", 8, true)
	m.RecordEmbeddingCall("google", "text-embedding-004", 8, false)
	m.RecordCacheHit("google/text-embedding-004")
	m.RecordCircuitBreakerState("embeddings", "open")
	m.RecordQuery("ok", 0.01, 3)
	m.RecordIndexBuild(1.5, 42, "ok")

	counts := collectCounts(t, reader)
	assert.Equal(t, int64(2), counts["embedding.requests.total"])
	assert.Equal(t, int64(1), counts["embedding.cache.hits"])
	assert.Equal(t, int64(1), counts["circuit_breaker.state_changes"])
	assert.Equal(t, int64(1), counts["retrieval.queries.total"])
	assert.Equal(t, int64(1), counts["retrieval.duration"])
	assert.Equal(t, int64(1), counts["index.build.duration"])
}
