// Package storage is the PostgreSQL + pgvector persistence layer.
package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

// DB is the subset of pgxpool.Pool used by the store; pgxmock satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// ErrUnknownArticle is returned when a write references an article that does not exist.
var ErrUnknownArticle = errors.New("article does not exist")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var articleColumns = []string{"id", "title", "content", "link", "source", "published", "embedding"}

type PostgresStore struct {
	db     DB
	logger *logrus.Logger
}

func NewPostgresStore(db DB, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Migrate creates the extension, tables and indexes if they are missing.
func (s *PostgresStore) Migrate(ctx context.Context, dimensions int) error {
	ddl := strings.ReplaceAll(schemaSQL, "{{dimensions}}", strconv.Itoa(dimensions))
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.logger.WithField("dimensions", dimensions).Info("Database schema applied")
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var (
		user   models.User
		vector *pgvector.Vector
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, interest_vector, updated_at FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &vector, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user.InterestVector = vectorValue(vector)
	return &user, nil
}

// UpsertUser writes the interest vector in a single statement, creating the
// user row if needed.
func (s *PostgresStore) UpsertUser(ctx context.Context, user *models.User) error {
	updatedAt := user.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, interest_vector, updated_at)
		VALUES ($1, $2::vector, $3)
		ON CONFLICT (id) DO UPDATE SET
			interest_vector = EXCLUDED.interest_vector,
			updated_at = EXCLUDED.updated_at`,
		user.ID, vectorArg(user.InterestVector), updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetInteractions returns the user's interactions oldest first.
func (s *PostgresStore) GetInteractions(ctx context.Context, userID uuid.UUID) ([]models.Interaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, article_id, interaction_type, ts
		FROM interactions
		WHERE user_id = $1
		ORDER BY ts, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var interactions []models.Interaction
	for rows.Next() {
		var in models.Interaction
		if err := rows.Scan(&in.ID, &in.UserID, &in.ArticleID, &in.Kind, &in.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		interactions = append(interactions, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read interactions: %w", err)
	}
	return interactions, nil
}

func (s *PostgresStore) InsertInteraction(ctx context.Context, in *models.Interaction) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO interactions (id, user_id, article_id, interaction_type, ts)
		VALUES ($1, $2, $3, $4, $5)`,
		in.ID, in.UserID, in.ArticleID, in.Kind, in.Timestamp,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("failed to insert interaction for article %s: %w", in.ArticleID, ErrUnknownArticle)
		}
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetArticlesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := psql.Select(articleColumns...).From("articles").Where(sq.Eq{"id": ids})
	return s.queryArticles(ctx, query)
}

func (s *PostgresStore) GetArticlesNewestFirst(ctx context.Context, exclude []uuid.UUID, limit int) ([]models.Article, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := psql.Select(articleColumns...).
		From("articles").
		OrderBy("published DESC", "id").
		Limit(uint64(limit))
	query = excludeIDs(query, exclude)
	return s.queryArticles(ctx, query)
}

func (s *PostgresStore) GetArticlesNearestTo(ctx context.Context, vector []float32, exclude []uuid.UUID, limit int) ([]models.Article, error) {
	if limit <= 0 || len(vector) == 0 {
		return nil, nil
	}
	query := psql.Select(articleColumns...).
		From("articles").
		Where("embedding IS NOT NULL").
		OrderByClause("embedding <=> ?::vector", pgvector.NewVector(vector)).
		Limit(uint64(limit))
	query = excludeIDs(query, exclude)
	return s.queryArticles(ctx, query)
}

func (s *PostgresStore) GetArticlesSince(ctx context.Context, since time.Time, exclude []uuid.UUID, limit int) ([]models.Article, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := psql.Select(articleColumns...).
		From("articles").
		Where(sq.GtOrEq{"published": since}).
		OrderBy("published DESC", "id").
		Limit(uint64(limit))
	query = excludeIDs(query, exclude)
	return s.queryArticles(ctx, query)
}

// InsertArticles inserts articles, skipping links that already exist, and
// returns the number of rows written.
func (s *PostgresStore) InsertArticles(ctx context.Context, articles []models.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	insert := psql.Insert("articles").
		Columns("id", "title", "content", "link", "source", "published", "embedding").
		Suffix("ON CONFLICT (link) DO NOTHING")
	for _, a := range articles {
		insert = insert.Values(a.ID, a.Title, a.Content, a.Link, a.Source, a.PublishedAt, sq.Expr("?::vector", vectorArg(a.Embedding)))
	}

	sql, args, err := insert.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build article insert: %w", err)
	}
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert articles: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ExistingLinks(ctx context.Context, links []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(links) == 0 {
		return existing, nil
	}

	sql, args, err := psql.Select("link").From("articles").Where(sq.Eq{"link": links}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build link query: %w", err)
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		existing[link] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read links: %w", err)
	}
	return existing, nil
}

func (s *PostgresStore) ArticlesMissingEmbedding(ctx context.Context, limit int) ([]models.Article, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := psql.Select(articleColumns...).
		From("articles").
		Where("embedding IS NULL").
		OrderBy("published DESC", "id").
		Limit(uint64(limit))
	return s.queryArticles(ctx, query)
}

func (s *PostgresStore) SetArticleEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	_, err := s.db.Exec(ctx,
		`UPDATE articles SET embedding = $1::vector WHERE id = $2`,
		vectorArg(embedding), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update article embedding: %w", err)
	}
	return nil
}

func excludeIDs(query sq.SelectBuilder, exclude []uuid.UUID) sq.SelectBuilder {
	if len(exclude) == 0 {
		return query
	}
	return query.Where(sq.NotEq{"id": exclude})
}

func (s *PostgresStore) queryArticles(ctx context.Context, query sq.SelectBuilder) ([]models.Article, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		var (
			a         models.Article
			embedding *pgvector.Vector
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Link, &a.Source, &a.PublishedAt, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		a.Embedding = vectorValue(embedding)
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read articles: %w", err)
	}
	return articles, nil
}
