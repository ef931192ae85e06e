package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EmbeddingBackfill embeds articles that were stored without a vector.
type EmbeddingBackfill struct {
	store     ArticleWriter
	embedder  Embedder
	interval  time.Duration
	batchSize int
	metrics   *Metrics
	logger    *logrus.Logger
	stopChan  chan struct{}
	wg        sync.WaitGroup
	stop      sync.Once
}

func NewEmbeddingBackfill(store ArticleWriter, embedder Embedder, interval time.Duration, batchSize int, metrics *Metrics, logger *logrus.Logger) *EmbeddingBackfill {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &EmbeddingBackfill{
		store:     store,
		embedder:  embedder,
		interval:  interval,
		batchSize: batchSize,
		metrics:   metrics,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Backfill embeds up to batchSize pending articles and returns how many
// received a vector.
func (b *EmbeddingBackfill) Backfill(ctx context.Context, batchSize int) (int, error) {
	if b.embedder == nil {
		return 0, ErrUnavailable
	}
	if batchSize <= 0 {
		batchSize = b.batchSize
	}

	pending, err := b.store.ArticlesMissingEmbedding(ctx, batchSize)
	if err != nil {
		return 0, dependencyError("load articles missing embeddings", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i := range pending {
		texts[i] = pending[i].EmbeddingText()
	}
	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, dependencyError("embed articles", err)
	}

	embedded := 0
	for i, v := range vectors {
		if i >= len(pending) {
			break
		}
		if len(v) == 0 || (b.embedder.Dimension() > 0 && len(v) != b.embedder.Dimension()) {
			b.logger.WithField("article_id", pending[i].ID).Warn("Skipping article with unusable embedding")
			continue
		}
		if err := b.store.SetArticleEmbedding(ctx, pending[i].ID, v); err != nil {
			return embedded, dependencyError("store article embedding", err)
		}
		embedded++
	}

	b.metrics.EmbeddingsBackfilled(embedded)
	b.logger.WithFields(logrus.Fields{
		"pending":  len(pending),
		"embedded": embedded,
	}).Info("Backfilled article embeddings")

	return embedded, nil
}

// Start runs Backfill on a ticker. A zero interval disables the worker.
func (b *EmbeddingBackfill) Start() {
	if b.interval <= 0 || b.embedder == nil {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), b.interval)
				if _, err := b.Backfill(ctx, b.batchSize); err != nil {
					b.logger.WithError(err).Warn("Periodic embedding backfill failed")
				}
				cancel()
			case <-b.stopChan:
				return
			}
		}
	}()
}

func (b *EmbeddingBackfill) Stop() {
	b.stop.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
	})
}
