package services

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/internal/lock"
	"github.com/temcen/newsrank/internal/vecmath"
	"github.com/temcen/newsrank/pkg/models"
)

// ProfileResult describes the outcome of a single rebuild.
type ProfileResult struct {
	UserID           uuid.UUID
	Updated          bool
	TotalWeight      float64
	InteractionsUsed int
	Reason           string
	Vector           []float32
}

// ProfileBuilder recomputes a user's interest vector from scratch as the
// weighted, time-decayed mean of the embeddings of articles they touched.
type ProfileBuilder struct {
	store         RankingStore
	locker        Locker
	dimensions    int
	weights       map[string]float64
	defaultWeight float64
	decayRate     float64
	metrics       *Metrics
	logger        *logrus.Logger
	now           func() time.Time
}

// NewProfileBuilder builds profiles of the given embedding dimension. Articles
// whose embedding has any other length are left out of the mean.
func NewProfileBuilder(store RankingStore, locker Locker, cfg *config.RankingConfig, dimensions int, metrics *Metrics, logger *logrus.Logger) *ProfileBuilder {
	if locker == nil {
		locker = lock.NewLocal()
	}

	weights := map[string]float64{
		models.InteractionClick:   1.0,
		models.InteractionLike:    2.0,
		models.InteractionDislike: -1.0,
	}
	for kind, w := range cfg.InteractionWeights {
		weights[kind] = w
	}

	return &ProfileBuilder{
		store:         store,
		locker:        locker,
		dimensions:    dimensions,
		weights:       weights,
		defaultWeight: cfg.DefaultWeight,
		decayRate:     cfg.DecayRate,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}
}

// InteractionWeight returns the base weight of an interaction kind.
func (b *ProfileBuilder) InteractionWeight(kind string) float64 {
	if w, ok := b.weights[kind]; ok {
		return w
	}
	return b.defaultWeight
}

// Decay returns exp(-rate * wholeDays) where wholeDays is the floored age in
// days, clamped at zero for timestamps in the future.
func (b *ProfileBuilder) Decay(now, ts time.Time) float64 {
	days := math.Floor(now.Sub(ts).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return math.Exp(-b.decayRate * days)
}

// BuildProfile rebuilds and persists the interest vector of userID. Rebuilds
// that find nothing usable leave the stored vector untouched and return a
// result with Updated=false.
func (b *ProfileBuilder) BuildProfile(ctx context.Context, userID uuid.UUID) (*ProfileResult, error) {
	if userID == uuid.Nil {
		return nil, invalidInput("user id is required")
	}

	unlock, err := b.locker.Lock(ctx, "profile:"+userID.String())
	if err != nil {
		return nil, dependencyError("acquire profile lock", err)
	}
	defer unlock()

	result, err := b.rebuild(ctx, userID)
	switch {
	case err != nil:
		b.metrics.ProfileRebuild("failed")
	case result.Updated:
		b.metrics.ProfileRebuild("updated")
	default:
		b.metrics.ProfileRebuild("skipped")
	}
	return result, err
}

func (b *ProfileBuilder) rebuild(ctx context.Context, userID uuid.UUID) (*ProfileResult, error) {
	result := &ProfileResult{UserID: userID}
	logger := b.logger.WithField("user_id", userID)

	interactions, err := b.store.GetInteractions(ctx, userID)
	if err != nil {
		return nil, dependencyError("load interactions", err)
	}
	if len(interactions) == 0 {
		result.Reason = "no interactions"
		logger.Info("Skipping profile rebuild: no interactions")
		return result, nil
	}

	ids := distinctArticleIDs(interactions)
	articles, err := b.store.GetArticlesByIDs(ctx, ids)
	if err != nil {
		return nil, dependencyError("load interacted articles", err)
	}
	byID := make(map[uuid.UUID]*models.Article, len(articles))
	for i := range articles {
		byID[articles[i].ID] = &articles[i]
	}

	now := b.now()
	acc := vecmath.NewAccumulator(b.dimensions)
	missing := 0
	for _, interaction := range interactions {
		article, ok := byID[interaction.ArticleID]
		if !ok || !article.HasEmbedding() {
			missing++
			continue
		}
		if len(article.Embedding) != b.dimensions {
			logger.WithFields(logrus.Fields{
				"article_id": article.ID,
				"dimension":  len(article.Embedding),
				"expected":   b.dimensions,
			}).Warn("Ignoring interaction with mismatched embedding dimension")
			continue
		}

		weight := b.InteractionWeight(interaction.Kind) * b.Decay(now, interaction.Timestamp)
		if err := acc.Add(article.Embedding, weight); err != nil {
			return nil, err
		}
	}

	if missing > 0 {
		logger.WithField("missing", missing).Warn("Interactions reference missing or unembedded articles")
	}
	if acc.Count() == 0 {
		result.Reason = "no embedded articles"
		logger.Info("Skipping profile rebuild: no embedded articles")
		return result, nil
	}

	result.TotalWeight = acc.TotalWeight()
	result.InteractionsUsed = acc.Count()

	// A non-positive total would invert or blow up the mean.
	if acc.TotalWeight() <= 0 {
		result.Reason = "non-positive total weight"
		logger.WithField("total_weight", acc.TotalWeight()).Info("Skipping profile rebuild: non-positive total weight")
		return result, nil
	}

	vector, err := acc.Mean()
	if err != nil {
		return nil, err
	}

	if err := b.store.UpsertUser(ctx, &models.User{ID: userID, InterestVector: vector, UpdatedAt: now}); err != nil {
		return nil, dependencyError("persist interest vector", err)
	}

	result.Updated = true
	result.Vector = vector

	logger.WithFields(logrus.Fields{
		"interactions_used": result.InteractionsUsed,
		"total_weight":      result.TotalWeight,
	}).Info("Updated user interest vector")

	return result, nil
}

func distinctArticleIDs(interactions []models.Interaction) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(interactions))
	ids := make([]uuid.UUID, 0, len(interactions))
	for _, interaction := range interactions {
		if _, ok := seen[interaction.ArticleID]; ok {
			continue
		}
		seen[interaction.ArticleID] = struct{}{}
		ids = append(ids, interaction.ArticleID)
	}
	return ids
}
