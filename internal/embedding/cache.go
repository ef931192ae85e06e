package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cached serves repeated texts from Redis. Cache failures fall through to
// the inner embedder.
type Cached struct {
	inner  Embedder
	redis  redis.UniversalClient
	model  string
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCached(inner Embedder, client redis.UniversalClient, model string, ttl time.Duration, logger *logrus.Logger) *Cached {
	return &Cached{
		inner:  inner,
		redis:  client,
		model:  model,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *Cached) Dimension() int {
	return c.inner.Dimension()
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, c, text)
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = CacheKey(c.model, text)
	}

	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.WithError(err).Warn("Embedding cache lookup failed")
		values = make([]interface{}, len(texts))
	}

	var missIdx []int
	var missTexts []string
	for i, v := range values {
		if s, ok := v.(string); ok {
			var vec []float32
			if err := json.Unmarshal([]byte(s), &vec); err == nil && len(vec) > 0 {
				out[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, ErrUnexpectedCount
	}

	pipe := c.redis.Pipeline()
	for j, idx := range missIdx {
		out[idx] = vectors[j]
		data, err := json.Marshal(vectors[j])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[idx], data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.WithError(err).Warn("Failed to cache embeddings")
	}

	c.logger.WithFields(logrus.Fields{
		"hits":   len(texts) - len(missTexts),
		"misses": len(missTexts),
	}).Debug("Embedding cache lookup")

	return out, nil
}

// CacheKey is embed:text:<sha256(model|text)>.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "|" + text))
	return "embed:text:" + hex.EncodeToString(sum[:])
}
