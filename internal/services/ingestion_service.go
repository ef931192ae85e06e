package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/textclean"
	"github.com/temcen/newsrank/pkg/models"
)

const unknownSource = "unknown"

// IngestionService stores already-fetched articles: clean, dedupe by link,
// embed, save. An embedder outage stores articles without vectors so the
// backfill can complete them later.
type IngestionService struct {
	store    ArticleWriter
	embedder Embedder
	metrics  *Metrics
	logger   *logrus.Logger
	now      func() time.Time
}

// NewIngestionService wires ingestion. embedder may be nil.
func NewIngestionService(store ArticleWriter, embedder Embedder, metrics *Metrics, logger *logrus.Logger) *IngestionService {
	return &IngestionService{
		store:    store,
		embedder: embedder,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *IngestionService) Ingest(ctx context.Context, inputs []models.ArticleInput) (*models.IngestReport, error) {
	report := &models.IngestReport{Received: len(inputs)}
	if len(inputs) == 0 {
		return report, nil
	}

	now := s.now().UTC()
	articles := make([]models.Article, 0, len(inputs))
	batchLinks := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		article, ok := s.normalize(in, now)
		if !ok {
			report.SkippedInvalid++
			continue
		}
		if _, dup := batchLinks[article.Link]; dup {
			report.SkippedDuplicate++
			continue
		}
		batchLinks[article.Link] = struct{}{}
		articles = append(articles, article)
	}

	if len(articles) > 0 {
		links := make([]string, len(articles))
		for i := range articles {
			links[i] = articles[i].Link
		}
		existing, err := s.store.ExistingLinks(ctx, links)
		if err != nil {
			return nil, dependencyError("check existing links", err)
		}

		fresh := articles[:0]
		for _, article := range articles {
			if existing[article.Link] {
				report.SkippedDuplicate++
				continue
			}
			fresh = append(fresh, article)
		}
		articles = fresh
	}

	if len(articles) == 0 {
		s.logReport(report)
		return report, nil
	}

	report.Embedded = s.embed(ctx, articles)

	stored, err := s.store.InsertArticles(ctx, articles)
	if err != nil {
		return nil, dependencyError("store articles", err)
	}
	report.Stored = stored
	// Rows lost to a concurrent insert of the same link are duplicates too.
	report.SkippedDuplicate += len(articles) - stored

	s.metrics.ArticlesIngested("stored", report.Stored)
	s.metrics.ArticlesIngested("duplicate", report.SkippedDuplicate)
	s.metrics.ArticlesIngested("invalid", report.SkippedInvalid)
	s.logReport(report)

	return report, nil
}

func (s *IngestionService) normalize(in models.ArticleInput, now time.Time) (models.Article, bool) {
	title := textclean.Clean(in.Title)
	link := strings.TrimSpace(in.Link)
	if title == "" || link == "" {
		return models.Article{}, false
	}

	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = unknownSource
	}
	published := now
	if in.PublishedAt != nil && !in.PublishedAt.IsZero() {
		published = in.PublishedAt.UTC()
	}

	return models.Article{
		ID:          uuid.New(),
		Title:       title,
		Content:     textclean.Clean(in.Content),
		Link:        link,
		Source:      source,
		PublishedAt: published,
	}, true
}

// embed fills in embeddings in place and returns how many were set.
func (s *IngestionService) embed(ctx context.Context, articles []models.Article) int {
	if s.embedder == nil {
		return 0
	}

	texts := make([]string, len(articles))
	for i := range articles {
		texts[i] = articles[i].EmbeddingText()
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.logger.WithError(err).WithField("articles", len(articles)).Warn("Embedding failed, storing articles without vectors")
		return 0
	}
	if len(vectors) != len(articles) {
		s.logger.WithFields(logrus.Fields{
			"articles": len(articles),
			"vectors":  len(vectors),
		}).Warn("Embedder returned wrong number of vectors, storing articles without vectors")
		return 0
	}

	embedded := 0
	for i, v := range vectors {
		if len(v) == 0 || (s.embedder.Dimension() > 0 && len(v) != s.embedder.Dimension()) {
			continue
		}
		articles[i].Embedding = v
		embedded++
	}
	return embedded
}

func (s *IngestionService) logReport(report *models.IngestReport) {
	s.logger.WithFields(logrus.Fields{
		"received":          report.Received,
		"stored":            report.Stored,
		"embedded":          report.Embedded,
		"skipped_invalid":   report.SkippedInvalid,
		"skipped_duplicate": report.SkippedDuplicate,
	}).Info("Ingested article batch")
}
