package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/temcen/newsrank/internal/config"
)

// Breaker stops calling a failing embedding service until it recovers.
type Breaker struct {
	inner  Embedder
	cb     *gobreaker.CircuitBreaker[[][]float32]
	logger *logrus.Logger
}

func NewBreaker(inner Embedder, cfg *config.BreakerConfig, logger *logrus.Logger) *Breaker {
	minRequests := cfg.MinRequests
	failureRatio := cfg.FailureRatio
	if failureRatio <= 0 {
		failureRatio = 0.6
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	cb := gobreaker.NewCircuitBreaker[[][]float32](gobreaker.Settings{
		Name:        "embedding-service",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= failureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Embedding circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about service health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Breaker{inner: inner, cb: cb, logger: logger}
}

func (b *Breaker) Dimension() int {
	return b.inner.Dimension()
}

func (b *Breaker) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, b, text)
}

func (b *Breaker) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return b.cb.Execute(func() ([][]float32, error) {
		return b.inner.EmbedBatch(ctx, texts)
	})
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
