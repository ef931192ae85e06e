package services

import (
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/internal/vecmath"
	"github.com/temcen/newsrank/pkg/models"
)

// Candidate is an article with its precomputed relevance to the user.
type Candidate struct {
	Article   models.Article
	Relevance float64
}

// DiversityRanker greedily builds a list that trades relevance against
// redundancy with already-selected articles and their sources.
type DiversityRanker struct {
	diversityWeight float64
	sourcePenalty   float64
	logger          *logrus.Logger
}

func NewDiversityRanker(cfg *config.RankingConfig, logger *logrus.Logger) *DiversityRanker {
	return &DiversityRanker{
		diversityWeight: cfg.DiversityWeight,
		sourcePenalty:   cfg.SourcePenalty,
		logger:          logger,
	}
}

type selection struct {
	articles     []models.Article
	seen         map[uuid.UUID]struct{}
	sourceCounts map[string]int
	embeddings   [][]float32
}

func (s *selection) add(article models.Article) {
	s.articles = append(s.articles, article)
	s.seen[article.ID] = struct{}{}
	s.sourceCounts[article.SourceKey()]++
	if article.HasEmbedding() {
		s.embeddings = append(s.embeddings, article.Embedding)
	}
}

// Select returns seed followed by greedy picks from candidates, at most limit
// items in total. Ties are broken in favor of the earlier candidate.
func (r *DiversityRanker) Select(seed []models.Article, candidates []Candidate, limit int) []models.Article {
	if limit <= 0 {
		return []models.Article{}
	}

	sel := &selection{
		articles:     make([]models.Article, 0, limit),
		seen:         make(map[uuid.UUID]struct{}, limit),
		sourceCounts: make(map[string]int),
	}
	for _, article := range seed {
		if len(sel.articles) == limit {
			break
		}
		if _, dup := sel.seen[article.ID]; dup {
			continue
		}
		sel.add(article)
	}

	pool := make([]Candidate, 0, len(candidates))
	pooled := make(map[uuid.UUID]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := sel.seen[c.Article.ID]; dup {
			continue
		}
		if _, dup := pooled[c.Article.ID]; dup {
			continue
		}
		pooled[c.Article.ID] = struct{}{}
		pool = append(pool, c)
	}

	for len(sel.articles) < limit && len(pool) > 0 {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i := range pool {
			score := r.score(&pool[i], sel)
			if score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
		if bestIdx < 0 {
			break
		}

		r.logger.WithFields(logrus.Fields{
			"article_id": pool[bestIdx].Article.ID,
			"score":      bestScore,
			"position":   len(sel.articles),
		}).Debug("Selected candidate")

		sel.add(pool[bestIdx].Article)
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}

	return sel.articles
}

// score is (1-α)·relevance − α·maxSimilarity − β·sourceCount.
func (r *DiversityRanker) score(c *Candidate, sel *selection) float64 {
	novelty := 0.0
	if c.Article.HasEmbedding() && len(sel.embeddings) > 0 {
		novelty = math.Inf(-1)
		for _, emb := range sel.embeddings {
			sim, err := vecmath.Cosine(c.Article.Embedding, emb)
			if err != nil {
				continue
			}
			novelty = math.Max(novelty, sim)
		}
		if math.IsInf(novelty, -1) {
			novelty = 0
		}
	}

	penalty := r.sourcePenalty * float64(sel.sourceCounts[c.Article.SourceKey()])
	return (1-r.diversityWeight)*c.Relevance - r.diversityWeight*novelty - penalty
}
