// Package embedding adapts external text-embedding services. Vectors are
// treated as opaque; only their dimension is checked.
package embedding

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/config"
)

var (
	ErrEmptyResponse     = errors.New("embedding service returned no vectors")
	ErrUnexpectedCount   = errors.New("embedding service returned an unexpected number of vectors")
	ErrDimensionMismatch = errors.New("embedding has unexpected dimension")
)

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// New builds the configured embedder chain: Hugging Face client, circuit
// breaker, then an optional Redis cache in front.
func New(cfg *config.EmbeddingConfig, cache redis.UniversalClient, logger *logrus.Logger) Embedder {
	var embedder Embedder = NewHuggingFace(cfg, logger)
	embedder = NewBreaker(embedder, &cfg.Breaker, logger)
	if cache != nil && cfg.CacheTTL > 0 {
		embedder = NewCached(embedder, cache, cfg.Model, cfg.CacheTTL, logger)
	}
	return embedder
}

func embedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, ErrUnexpectedCount
	}
	return vectors[0], nil
}
