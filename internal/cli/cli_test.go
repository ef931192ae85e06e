package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/internal/services"
	"github.com/temcen/newsrank/pkg/models"
)

type MockBackend struct{ mock.Mock }

func (m *MockBackend) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBackend) Recommend(ctx context.Context, userID uuid.UUID, limit int) (*services.RecommendationResult, error) {
	args := m.Called(ctx, userID, limit)
	result, _ := args.Get(0).(*services.RecommendationResult)
	return result, args.Error(1)
}

func (m *MockBackend) BuildProfile(ctx context.Context, userID uuid.UUID) (*services.ProfileResult, error) {
	args := m.Called(ctx, userID)
	result, _ := args.Get(0).(*services.ProfileResult)
	return result, args.Error(1)
}

func (m *MockBackend) Backfill(ctx context.Context, batchSize int) (int, error) {
	args := m.Called(ctx, batchSize)
	return args.Int(0), args.Error(1)
}

func (m *MockBackend) Ingest(ctx context.Context, inputs []models.ArticleInput) (*models.IngestReport, error) {
	args := m.Called(ctx, inputs)
	report, _ := args.Get(0).(*models.IngestReport)
	return report, args.Error(1)
}

func (m *MockBackend) Close() error {
	return m.Called().Error(0)
}

// run executes the root command with an explicit config file so the
// working directory never matters.
func run(t *testing.T, backend Backend, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: panic\n"), 0o600))

	root := NewRootCommand(func(*config.Config) (Backend, error) {
		if backend == nil {
			return nil, errors.New("no backend")
		}
		return backend, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))

	err := root.Execute()
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	backend := &MockBackend{}
	backend.On("Migrate", mock.Anything).Return(nil)
	backend.On("Close").Return(nil)

	out, err := run(t, backend, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date.")
	backend.AssertExpectations(t)
}

func TestRecommend(t *testing.T) {
	userID := uuid.New()
	published := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	backend := &MockBackend{}
	backend.On("Recommend", mock.Anything, userID, 3).Return(&services.RecommendationResult{
		UserID:   userID,
		Strategy: models.StrategyColdStart,
		Articles: []models.Article{
			{ID: uuid.New(), Title: "Breaking", Source: "Wire", Link: "https://news.test/1", PublishedAt: published},
			{ID: uuid.New(), Title: "Later", Source: "Daily", Link: "https://news.test/2", PublishedAt: published},
		},
		TrendingCount: 1,
	}, nil)
	backend.On("Close").Return(nil)

	out, err := run(t, backend, "recommend", userID.String(), "--limit", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Strategy: cold_start")
	assert.Contains(t, out, " 1.* [Wire] Breaking")
	assert.Contains(t, out, " 2.  [Daily] Later")
	backend.AssertExpectations(t)
}

func TestRecommend_InvalidUser(t *testing.T) {
	backend := &MockBackend{}

	_, err := run(t, backend, "recommend", "nope")
	require.Error(t, err)
	backend.AssertNotCalled(t, "Recommend", mock.Anything, mock.Anything, mock.Anything)
	backend.AssertNotCalled(t, "Close")
}

func TestRebuildProfile(t *testing.T) {
	userID := uuid.New()
	backend := &MockBackend{}
	backend.On("BuildProfile", mock.Anything, userID).Return(&services.ProfileResult{
		UserID: userID, Reason: "no interactions",
	}, nil)
	backend.On("Close").Return(nil)

	out, err := run(t, backend, "rebuild-profile", userID.String())
	require.NoError(t, err)
	assert.Contains(t, out, `"updated": false`)
	assert.Contains(t, out, `"reason": "no interactions"`)
}

func TestBackfill(t *testing.T) {
	backend := &MockBackend{}
	backend.On("Backfill", mock.Anything, 20).Return(4, nil)
	backend.On("Close").Return(nil)

	out, err := run(t, backend, "backfill-embeddings", "--batch", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "Embedded 4 articles.")

	failing := &MockBackend{}
	failing.On("Backfill", mock.Anything, 0).Return(0, services.ErrUnavailable)
	failing.On("Close").Return(nil)

	_, err = run(t, failing, "backfill-embeddings")
	assert.ErrorIs(t, err, services.ErrUnavailable)
	failing.AssertExpectations(t)
}

func TestIngest(t *testing.T) {
	dir := t.TempDir()
	wrapped := filepath.Join(dir, "wrapped.json")
	bare := filepath.Join(dir, "bare.json")
	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(wrapped, []byte(`{"articles":[{"title":"A","link":"https://news.test/a"}]}`), 0o600))
	require.NoError(t, os.WriteFile(bare, []byte(`[{"title":"A","link":"https://news.test/a"},{"title":"B","link":"https://news.test/b"}]`), 0o600))
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0o600))

	for _, tc := range []struct {
		path  string
		count int
	}{{wrapped, 1}, {bare, 2}} {
		backend := &MockBackend{}
		backend.On("Ingest", mock.Anything, mock.MatchedBy(func(in []models.ArticleInput) bool {
			return len(in) == tc.count
		})).Return(&models.IngestReport{Received: tc.count, Stored: tc.count}, nil)
		backend.On("Close").Return(nil)

		out, err := run(t, backend, "ingest", tc.path)
		require.NoError(t, err, tc.path)
		assert.Contains(t, out, `"stored"`)
		backend.AssertExpectations(t)
	}

	backend := &MockBackend{}
	_, err := run(t, backend, "ingest", empty)
	assert.Error(t, err)
	backend.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
}

func TestOpenFailure(t *testing.T) {
	_, err := run(t, nil, "migrate")
	assert.ErrorContains(t, err, "failed to connect")
}
