package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/pkg/models"
)

// TrendingSelector picks the newest articles inside a recency window.
type TrendingSelector struct {
	articles ArticleReader
	logger   *logrus.Logger
	now      func() time.Time
}

func NewTrendingSelector(articles ArticleReader, logger *logrus.Logger) *TrendingSelector {
	return &TrendingSelector{
		articles: articles,
		logger:   logger,
		now:      time.Now,
	}
}

func (t *TrendingSelector) Select(ctx context.Context, exclude []uuid.UUID, slots int, window time.Duration) ([]models.Article, error) {
	return t.SelectAt(ctx, t.now(), exclude, slots, window)
}

// SelectAt is Select evaluated against a fixed instant.
func (t *TrendingSelector) SelectAt(ctx context.Context, now time.Time, exclude []uuid.UUID, slots int, window time.Duration) ([]models.Article, error) {
	if slots <= 0 {
		return nil, nil
	}

	since := now.Add(-window)
	articles, err := t.articles.GetArticlesSince(ctx, since, exclude, slots)
	if err != nil {
		return nil, dependencyError("load trending articles", err)
	}

	excluded := idSet(exclude)
	trending := make([]models.Article, 0, slots)
	for _, article := range articles {
		if len(trending) == slots {
			break
		}
		if _, skip := excluded[article.ID]; skip || article.PublishedAt.Before(since) {
			continue
		}
		trending = append(trending, article)
	}

	t.logger.WithFields(logrus.Fields{
		"trending": len(trending),
		"since":    since,
	}).Debug("Selected trending articles")

	return trending, nil
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
