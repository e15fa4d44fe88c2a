package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	QueriesServed       metric.Int64Counter
	RetrievalDuration   metric.Float64Histogram
	EmbeddingCalls      metric.Int64Counter
	EmbeddingCacheHits  metric.Int64Counter
	IndexBuildDuration  metric.Float64Histogram
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("site-assistant")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queriesServed, err := meter.Int64Counter(
		"retrieval.queries.total",
		metric.WithDescription("Total retrieval queries served"),
	)
	if err != nil {
		return nil, err
	}

	retrievalDuration, err := meter.Float64Histogram(
		"retrieval.duration",
		metric.WithDescription("End-to-end retrieval duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	embeddingCalls, err := meter.Int64Counter(
		"embedding.requests.total",
		metric.WithDescription("Total embedding service calls"),
	)
	if err != nil {
		return nil, err
	}

	embeddingCacheHits, err := meter.Int64Counter(
		"embedding.cache.hits",
		metric.WithDescription("Query embeddings served from cache"),
	)
	if err != nil {
		return nil, err
	}

	indexBuildDuration, err := meter.Float64Histogram(
		"index.build.duration",
		metric.WithDescription("Index build duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		QueriesServed:       queriesServed,
		RetrievalDuration:   retrievalDuration,
		EmbeddingCalls:      embeddingCalls,
		EmbeddingCacheHits:  embeddingCacheHits,
		IndexBuildDuration:  indexBuildDuration,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordQuery records a served retrieval query
func (m *Metrics) RecordQuery(status string, duration float64, hits int) {
	attrs := []attribute.KeyValue{
		attribute.String("query.status", status),
		attribute.Int("query.hits", hits),
	}

	m.QueriesServed.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RetrievalDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordEmbeddingCall records one call to the embedding provider
func (m *Metrics) RecordEmbeddingCall(provider, model string, texts int, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("embedding.provider", provider),
		attribute.String("embedding.model", model),
		attribute.Int("embedding.texts", texts),
		attribute.Bool("embedding.success", success),
	}

	m.EmbeddingCalls.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordCacheHit records a query embedding served from Redis
func (m *Metrics) RecordCacheHit(model string) {
	attrs := []attribute.KeyValue{
		attribute.String("embedding.model", model),
	}

	m.EmbeddingCacheHits.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordIndexBuild records a completed index build
func (m *Metrics) RecordIndexBuild(duration float64, chunks int, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("build.status", status),
		attribute.Int("build.chunks", chunks),
	}

	m.IndexBuildDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
