package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/temcen/newsrank/pkg/models"
)

// ArticleReader is the read side used by profiling and ranking.
type ArticleReader interface {
	GetArticlesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Article, error)
	GetArticlesNewestFirst(ctx context.Context, exclude []uuid.UUID, limit int) ([]models.Article, error)
	// GetArticlesNearestTo returns embedded articles by ascending cosine distance.
	GetArticlesNearestTo(ctx context.Context, vector []float32, exclude []uuid.UUID, limit int) ([]models.Article, error)
	// GetArticlesSince returns articles published at or after since, newest first.
	GetArticlesSince(ctx context.Context, since time.Time, exclude []uuid.UUID, limit int) ([]models.Article, error)
}

// UserStore persists interest vectors.
type UserStore interface {
	// GetUser returns nil, nil when the user does not exist.
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
}

type InteractionStore interface {
	GetInteractions(ctx context.Context, userID uuid.UUID) ([]models.Interaction, error)
	InsertInteraction(ctx context.Context, interaction *models.Interaction) error
}

// RankingStore is everything the recommendation path reads.
type RankingStore interface {
	ArticleReader
	UserStore
	InteractionStore
}

// ArticleWriter is the write side used by ingestion and backfill.
type ArticleWriter interface {
	InsertArticles(ctx context.Context, articles []models.Article) (int, error)
	ExistingLinks(ctx context.Context, links []string) (map[string]bool, error)
	ArticlesMissingEmbedding(ctx context.Context, limit int) ([]models.Article, error)
	SetArticleEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
}

// Store is implemented by storage.PostgresStore.
type Store interface {
	RankingStore
	ArticleWriter
}

// Embedder turns text into vectors. Implemented by the embedding package.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Locker serializes work per key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// InteractionSink receives recorded interactions for best-effort mirroring.
type InteractionSink interface {
	Enqueue(interaction models.Interaction)
}

// ProfileRebuilder is the contract the interaction path uses to schedule rebuilds.
type ProfileRebuilder interface {
	TriggerRebuild(userID uuid.UUID) bool
}

// ArticlePublisher hands ingestion batches to the message bus.
type ArticlePublisher interface {
	PublishArticles(ctx context.Context, articles []models.ArticleInput) error
}
