package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/newsrank/internal/config"
)

type stubEmbedder struct {
	err   error
	calls int
}

func (s *stubEmbedder) Dimension() int { return 3 }

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, s, text)
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	stub := &stubEmbedder{err: errors.New("connection refused")}
	b := NewBreaker(stub, &config.BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  3,
	}, quietLogger())

	for i := 0; i < 3; i++ {
		_, err := b.EmbedBatch(context.Background(), []string{"a"})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, stub.calls)
}

func TestBreaker_PassesThrough(t *testing.T) {
	stub := &stubEmbedder{}
	b := NewBreaker(stub, &config.BreakerConfig{MinRequests: 1}, quietLogger())

	vec, err := b.Embed(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)
	assert.Equal(t, 3, b.Dimension())
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
