package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"site-assistant/internal/logger"
	"site-assistant/internal/telemetry"
)

// EmbeddingCache caches query embeddings in Redis. Users repeat questions,
// and the embedding call is the only expensive step of a query against a
// small index. Keys include the model ID so a model change never serves stale
// vectors. The cache fails open: Redis being down degrades to calling the
// embedding API, never to an error.
type EmbeddingCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	metrics *telemetry.Metrics // optional
}

// NewEmbeddingCache builds a cache over rdb. metrics may be nil; hit
// counting is skipped then.
func NewEmbeddingCache(rdb *redis.Client, ttl time.Duration, metrics *telemetry.Metrics) *EmbeddingCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &EmbeddingCache{rdb: rdb, ttl: ttl, metrics: metrics}
}

func cacheKey(modelID, text string) string {
	sum := sha256.Sum256([]byte(modelID + "\x00" + text))
	return "embed:" + hex.EncodeToString(sum[:])
}

func (c *EmbeddingCache) Get(ctx context.Context, modelID, text string) ([]float32, bool) {
	data, err := c.rdb.Get(ctx, cacheKey(modelID, text)).Bytes()
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false
	}
	if c.metrics != nil {
		c.metrics.RecordCacheHit(modelID)
	}
	return vec, true
}

func (c *EmbeddingCache) Put(ctx context.Context, modelID, text string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(modelID, text), data, c.ttl).Err(); err != nil {
		logger.Debug("Embedding cache write failed", "error", err.Error())
	}
}
