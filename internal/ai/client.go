package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"site-assistant/internal/config"
	"site-assistant/internal/logger"
	"site-assistant/internal/telemetry"
	"site-assistant/models"
)

// Client wraps an embedding provider with client-side rate limiting, a
// circuit breaker and bounded retries. It is safe for concurrent use, so
// simultaneous query requests do not serialize behind one embedding call.
type Client struct {
	provider    provider
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	batchSize   int
	maxRetries  int
	backoff     time.Duration
	metrics     *telemetry.Metrics // optional
}

// NewClient builds the Embedder for the configured provider. metrics may be
// nil; embedding call and breaker instrumentation is skipped then.
func NewClient(cfg *config.Config, metrics *telemetry.Metrics) (*Client, error) {
	var p provider
	var err error
	switch cfg.EmbeddingsProvider {
	case "google", "":
		p, err = newGeminiProvider(cfg.GeminiAPIKey, cfg.GoogleEmbeddingsModel)
	case "openai":
		p, err = newOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIEmbeddingsModel)
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
	if err != nil {
		return nil, err
	}
	return newClientWithProvider(p, cfg, metrics), nil
}

func newClientWithProvider(p provider, cfg *config.Config, metrics *telemetry.Metrics) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "EmbeddingAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			if metrics != nil {
				metrics.RecordCircuitBreakerState(name, to.String())
			}
		},
	})

	rpm := cfg.EmbedRequestsPerMin
	if rpm <= 0 {
		rpm = 300
	}
	// RPM limit with some buffer
	limiter := rate.NewLimiter(rate.Limit(float64(rpm)*0.9/60.0), max(rpm/10, 1))

	batch := cfg.EmbedBatchSize
	if batch <= 0 {
		batch = 64
	}
	retries := cfg.EmbedMaxRetries
	if retries < 0 {
		retries = 0
	}
	backoff := cfg.EmbedRetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	return &Client{
		provider:    p,
		breaker:     breaker,
		rateLimiter: limiter,
		batchSize:   batch,
		maxRetries:  retries,
		backoff:     backoff,
		metrics:     metrics,
	}
}

// recordEmbedCall reports one provider round trip to the metrics pipeline.
func (c *Client) recordEmbedCall(texts int, success bool) {
	if c.metrics == nil {
		return
	}
	providerName, model, _ := strings.Cut(c.provider.modelID(), "/")
	c.metrics.RecordEmbeddingCall(providerName, model, texts, success)
}

func (c *Client) ModelID() string { return c.provider.modelID() }

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("text %d is empty: %w", i, models.ErrInvalidInput)
		}
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vectors, err := c.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff * time.Duration(1<<(attempt-1))
			logger.Debug("Retrying embedding call", "attempt", attempt, "delay", delay.String())
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.provider.embed(ctx, texts)
		})
		if err == nil {
			vectors := result.([][]float32)
			if len(vectors) != len(texts) {
				c.recordEmbedCall(len(texts), false)
				return nil, fmt.Errorf("provider returned %d vectors for %d texts: %w",
					len(vectors), len(texts), models.ErrEmbeddingService)
			}
			c.recordEmbedCall(len(texts), true)
			return vectors, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
	}
	c.recordEmbedCall(len(texts), false)
	return nil, fmt.Errorf("embedding failed after %d attempts: %v: %w",
		c.maxRetries+1, lastErr, models.ErrEmbeddingService)
}
