package services

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/internal/vecmath"
	"github.com/temcen/newsrank/pkg/models"
)

// RecommendationResult is the ordered list for one request plus how it was built.
type RecommendationResult struct {
	UserID        uuid.UUID
	Articles      []models.Article
	Strategy      string
	TrendingCount int
	GeneratedAt   time.Time
}

// RecommendationOrchestrator runs the per-request pipeline: trending
// injection, then either the cold-start fallback or semantic candidate
// generation followed by diversity-aware selection.
type RecommendationOrchestrator struct {
	store    RankingStore
	trending *TrendingSelector
	ranker   *DiversityRanker
	config   *config.RankingConfig
	metrics  *Metrics
	logger   *logrus.Logger
	now      func() time.Time
}

func NewRecommendationOrchestrator(
	store RankingStore,
	trending *TrendingSelector,
	ranker *DiversityRanker,
	cfg *config.RankingConfig,
	metrics *Metrics,
	logger *logrus.Logger,
) *RecommendationOrchestrator {
	return &RecommendationOrchestrator{
		store:    store,
		trending: trending,
		ranker:   ranker,
		config:   cfg,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Recommend returns up to limit articles for userID. A shorter list is a
// valid result; store failures abort the request with a DependencyError.
func (o *RecommendationOrchestrator) Recommend(ctx context.Context, userID uuid.UUID, limit int) (*RecommendationResult, error) {
	if userID == uuid.Nil {
		return nil, invalidInput("user id is required")
	}
	if limit <= 0 {
		return nil, invalidInput("limit must be positive, got %d", limit)
	}

	start := time.Now()
	now := o.now()
	logger := o.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"limit":   limit,
	})

	user, err := o.store.GetUser(ctx, userID)
	if err != nil {
		return nil, dependencyError("load user", err)
	}
	interactions, err := o.store.GetInteractions(ctx, userID)
	if err != nil {
		return nil, dependencyError("load interactions", err)
	}
	interacted := distinctArticleIDs(interactions)

	trending, err := o.trending.SelectAt(ctx, now, interacted, o.config.TrendingSlots, o.config.TrendingWindow)
	if err != nil {
		return nil, err
	}
	exclude := append(append(make([]uuid.UUID, 0, len(interacted)+len(trending)), interacted...), articleIDs(trending)...)

	result := &RecommendationResult{
		UserID:        userID,
		TrendingCount: len(trending),
		GeneratedAt:   now,
	}

	if user.IsCold() {
		articles, err := o.coldStart(ctx, trending, exclude, limit)
		if err != nil {
			return nil, err
		}
		result.Articles = articles
		result.Strategy = models.StrategyColdStart
		if result.TrendingCount > len(articles) {
			result.TrendingCount = len(articles)
		}
		logger.WithFields(logrus.Fields{
			"returned": len(articles),
			"trending": result.TrendingCount,
		}).Info("Cold start: serving newest articles")
		o.metrics.Recommendation(result.Strategy, len(articles), time.Since(start))
		return result, nil
	}

	pool, err := o.store.GetArticlesNearestTo(ctx, user.InterestVector, exclude, o.config.CandidatePoolSize)
	if err != nil {
		return nil, dependencyError("load candidate articles", err)
	}
	candidates := o.scoreCandidates(user.InterestVector, pool, now, logger)

	articles := o.ranker.Select(trending, candidates, limit)
	result.Articles = articles
	result.Strategy = models.StrategyPersonal
	if result.TrendingCount > len(articles) {
		result.TrendingCount = len(articles)
	}

	logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"trending":   result.TrendingCount,
		"returned":   len(articles),
	}).Info("Generated personalized recommendations")
	o.metrics.Recommendation(result.Strategy, len(articles), time.Since(start))

	return result, nil
}

// coldStart serves trending first, then the newest remaining articles.
func (o *RecommendationOrchestrator) coldStart(ctx context.Context, trending []models.Article, exclude []uuid.UUID, limit int) ([]models.Article, error) {
	articles := make([]models.Article, 0, limit)
	for _, article := range trending {
		if len(articles) == limit {
			return articles, nil
		}
		articles = append(articles, article)
	}

	newest, err := o.store.GetArticlesNewestFirst(ctx, exclude, limit-len(articles))
	if err != nil {
		return nil, dependencyError("load newest articles", err)
	}

	excluded := idSet(exclude)
	for _, article := range newest {
		if len(articles) == limit {
			break
		}
		if _, skip := excluded[article.ID]; skip {
			continue
		}
		excluded[article.ID] = struct{}{}
		articles = append(articles, article)
	}
	return articles, nil
}

// scoreCandidates computes cos(user, article) * (1 + w * recency) for each
// embedded candidate. Candidates that cannot be compared are dropped.
func (o *RecommendationOrchestrator) scoreCandidates(userVector []float32, pool []models.Article, now time.Time, logger *logrus.Entry) []Candidate {
	candidates := make([]Candidate, 0, len(pool))
	for _, article := range pool {
		if !article.HasEmbedding() {
			continue
		}
		sim, err := vecmath.Cosine(userVector, article.Embedding)
		if err != nil {
			logger.WithError(err).WithField("article_id", article.ID).Warn("Dropping candidate with mismatched embedding")
			continue
		}
		candidates = append(candidates, Candidate{
			Article:   article,
			Relevance: sim * (1 + o.config.RecencyWeight*RecencyBoost(now, article.PublishedAt)),
		})
	}
	return candidates
}

// RecencyBoost is 1/(1 + ageHours/24), with future timestamps treated as age zero.
func RecencyBoost(now, published time.Time) float64 {
	ageHours := math.Max(0, now.Sub(published).Hours())
	return 1 / (1 + ageHours/24)
}

func articleIDs(articles []models.Article) []uuid.UUID {
	ids := make([]uuid.UUID, len(articles))
	for i := range articles {
		ids[i] = articles[i].ID
	}
	return ids
}
