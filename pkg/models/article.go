package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Article struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Content     string    `json:"content" db:"content"`
	Link        string    `json:"link" db:"link"`
	Source      string    `json:"source" db:"source"`
	PublishedAt time.Time `json:"published_at" db:"published"`
	Embedding   []float32 `json:"-" db:"embedding"` // nil until embedded
}

// SourceKey is the case-insensitive grouping key used for source diversity.
func (a Article) SourceKey() string {
	return strings.ToLower(strings.TrimSpace(a.Source))
}

func (a Article) HasEmbedding() bool {
	return len(a.Embedding) > 0
}

// EmbeddingText is the text handed to the embedder for this article.
func (a Article) EmbeddingText() string {
	return strings.TrimSpace(a.Title + " " + a.Content)
}

// ArticleInput is an already-fetched document offered for ingestion.
type ArticleInput struct {
	Title       string     `json:"title" validate:"required,min=1,max=1000"`
	Content     string     `json:"content"`
	Link        string     `json:"link" validate:"required,url"`
	Source      string     `json:"source" validate:"max=255"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

type ArticleBatchRequest struct {
	Articles []ArticleInput `json:"articles" validate:"required,min=1,max=100,dive"`
}

type IngestReport struct {
	Received         int `json:"received"`
	SkippedInvalid   int `json:"skipped_invalid"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	Stored           int `json:"stored"`
	Embedded         int `json:"embedded"`
}
