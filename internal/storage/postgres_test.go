package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/newsrank/pkg/models"
)

var articleRowColumns = []string{"id", "title", "content", "link", "source", "published", "embedding"}

func vectorRow(values ...float32) *pgvector.Vector {
	v := pgvector.NewVector(values)
	return &v
}

func newTestStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockDB.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewPostgresStore(mockDB, logger), mockDB
}

func TestPostgresStore_GetUser(t *testing.T) {
	store, mockDB := newTestStore(t)
	ctx := context.Background()

	t.Run("existing user with vector", func(t *testing.T) {
		userID := uuid.New()
		updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		mockDB.ExpectQuery("SELECT id, interest_vector, updated_at FROM users").
			WithArgs(userID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "interest_vector", "updated_at"}).
				AddRow(userID, vectorRow(1, 0.5, -2), updated))

		user, err := store.GetUser(ctx, userID)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, userID, user.ID)
		assert.Equal(t, []float32{1, 0.5, -2}, user.InterestVector)
		assert.False(t, user.IsCold())
	})

	t.Run("missing user", func(t *testing.T) {
		userID := uuid.New()
		mockDB.ExpectQuery("SELECT id, interest_vector, updated_at FROM users").
			WithArgs(userID).
			WillReturnError(pgx.ErrNoRows)

		user, err := store.GetUser(ctx, userID)
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("query failure", func(t *testing.T) {
		userID := uuid.New()
		mockDB.ExpectQuery("SELECT id, interest_vector, updated_at FROM users").
			WithArgs(userID).
			WillReturnError(errors.New("connection reset"))

		_, err := store.GetUser(ctx, userID)
		assert.Error(t, err)
	})

	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresStore_UpsertUser(t *testing.T) {
	store, mockDB := newTestStore(t)
	userID := uuid.New()
	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mockDB.ExpectExec("INSERT INTO users").
		WithArgs(userID, pgvector.NewVector([]float32{0.25, 0.75}), updated).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.UpsertUser(context.Background(), &models.User{
		ID:             userID,
		InterestVector: []float32{0.25, 0.75},
		UpdatedAt:      updated,
	})
	require.NoError(t, err)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresStore_GetInteractions(t *testing.T) {
	store, mockDB := newTestStore(t)
	userID := uuid.New()
	articleID := uuid.New()
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mockDB.ExpectQuery("FROM interactions").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "article_id", "interaction_type", "ts"}).
			AddRow(uuid.New(), userID, articleID, "like", ts))

	interactions, err := store.GetInteractions(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	assert.Equal(t, articleID, interactions[0].ArticleID)
	assert.Equal(t, "like", interactions[0].Kind)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresStore_InsertInteraction(t *testing.T) {
	store, mockDB := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		execErr     error
		wantErr     bool
		wantUnknown bool
	}{
		{name: "stored"},
		{name: "unknown article", execErr: &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, wantErr: true, wantUnknown: true},
		{name: "connection failure", execErr: errors.New("connection reset"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &models.Interaction{ID: uuid.New(), UserID: uuid.New(), ArticleID: uuid.New(), Kind: "like", Timestamp: ts}
			exp := mockDB.ExpectExec("INSERT INTO interactions").
				WithArgs(in.ID, in.UserID, in.ArticleID, in.Kind, in.Timestamp)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			err := store.InsertInteraction(ctx, in)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantUnknown, errors.Is(err, ErrUnknownArticle))
		})
	}

	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresStore_GetArticlesNearestTo(t *testing.T) {
	store, mockDB := newTestStore(t)
	excluded := uuid.New()
	articleID := uuid.New()
	published := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	mockDB.ExpectQuery(`SELECT (.+) FROM articles WHERE embedding IS NOT NULL AND id NOT IN \(\$1\) ORDER BY embedding <=> \$2::vector LIMIT 50`).
		WithArgs(excluded, pgvector.NewVector([]float32{1, 0})).
		WillReturnRows(pgxmock.NewRows(articleRowColumns).
			AddRow(articleID, "Title", "Body", "https://news.test/a", "Wire", published, vectorRow(0.9, 0.1)))

	articles, err := store.GetArticlesNearestTo(context.Background(), []float32{1, 0}, []uuid.UUID{excluded}, 50)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, articleID, articles[0].ID)
	assert.Equal(t, []float32{0.9, 0.1}, articles[0].Embedding)
	assert.Equal(t, "wire", articles[0].SourceKey())
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresStore_GetArticlesNewestFirst(t *testing.T) {
	store, mockDB := newTestStore(t)
	published := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	mockDB.ExpectQuery(`SELECT (.+) FROM articles ORDER BY published DESC, id LIMIT 5`).
		WillReturnRows(pgxmock.NewRows(articleRowColumns).
			AddRow(uuid.New(), "No vector", "", "https://news.test/b", "Wire", published, nil))

	articles, err := store.GetArticlesNewestFirst(context.Background(), nil, 5)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Nil(t, articles[0].Embedding)
	assert.False(t, articles[0].HasEmbedding())
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresStore_GetArticlesSince(t *testing.T) {
	store, mockDB := newTestStore(t)
	since := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

	mockDB.ExpectQuery(`SELECT (.+) FROM articles WHERE published >= \$1 ORDER BY published DESC, id LIMIT 2`).
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows(articleRowColumns))

	articles, err := store.GetArticlesSince(context.Background(), since, nil, 2)
	require.NoError(t, err)
	assert.Empty(t, articles)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresStore_InsertArticles(t *testing.T) {
	store, mockDB := newTestStore(t)
	published := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	a := models.Article{ID: uuid.New(), Title: "A", Link: "https://news.test/a", Source: "Wire", PublishedAt: published, Embedding: []float32{1, 0}}
	b := models.Article{ID: uuid.New(), Title: "B", Link: "https://news.test/b", Source: "Wire", PublishedAt: published}

	mockDB.ExpectExec(`INSERT INTO articles (.+) ON CONFLICT \(link\) DO NOTHING`).
		WithArgs(a.ID, a.Title, a.Content, a.Link, a.Source, a.PublishedAt, pgvector.NewVector([]float32{1, 0}),
			b.ID, b.Title, b.Content, b.Link, b.Source, b.PublishedAt, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	stored, err := store.InsertArticles(context.Background(), []models.Article{a, b})
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresStore_ExistingLinks(t *testing.T) {
	store, mockDB := newTestStore(t)

	mockDB.ExpectQuery(`SELECT link FROM articles WHERE link IN \(\$1,\$2\)`).
		WithArgs("https://news.test/a", "https://news.test/b").
		WillReturnRows(pgxmock.NewRows([]string{"link"}).AddRow("https://news.test/b"))

	existing, err := store.ExistingLinks(context.Background(), []string{"https://news.test/a", "https://news.test/b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"https://news.test/b": true}, existing)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresStore_SetArticleEmbedding(t *testing.T) {
	store, mockDB := newTestStore(t)
	id := uuid.New()

	mockDB.ExpectExec(`UPDATE articles SET embedding = \$1::vector WHERE id = \$2`).
		WithArgs(pgvector.NewVector([]float32{0.5, 0.5}), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.SetArticleEmbedding(context.Background(), id, []float32{0.5, 0.5}))
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestPostgresStore_EmptyInputsSkipQueries(t *testing.T) {
	store, mockDB := newTestStore(t)
	ctx := context.Background()

	articles, err := store.GetArticlesByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, articles)

	articles, err = store.GetArticlesNearestTo(ctx, []float32{1}, nil, 0)
	require.NoError(t, err)
	assert.Nil(t, articles)

	stored, err := store.InsertArticles(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, stored)

	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestVectorConversion(t *testing.T) {
	assert.Nil(t, vectorArg(nil))
	assert.Equal(t, pgvector.NewVector([]float32{1, 0.5, -2}), vectorArg([]float32{1, 0.5, -2}))

	assert.Nil(t, vectorValue(nil))
	assert.Nil(t, vectorValue(vectorRow()))
	assert.Equal(t, []float32{1, 0.5, -2}, vectorValue(vectorRow(1, 0.5, -2)))
}
