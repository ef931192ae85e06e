package services

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/internal/database"
	"github.com/temcen/newsrank/internal/embedding"
	"github.com/temcen/newsrank/internal/graph"
	"github.com/temcen/newsrank/internal/lock"
	"github.com/temcen/newsrank/internal/messaging"
	"github.com/temcen/newsrank/internal/storage"
	"github.com/temcen/newsrank/internal/validation"
)

type Services struct {
	Store                      *storage.PostgresStore
	Metrics                    *Metrics
	Health                     *HealthService
	RateLimit                  *RateLimitService
	ProfileBuilder             *ProfileBuilder
	ProfileUpdater             *ProfileUpdater
	RecommendationOrchestrator *RecommendationOrchestrator
	Interactions               *InteractionService
	Ingestion                  *IngestionService
	Backfill                   *EmbeddingBackfill
	Validator                  *validation.SchemaValidator
	// Graph and MessageBus are nil when their integration is disabled.
	Graph      *graph.InteractionGraph
	MessageBus *messaging.MessageBus

	logger   *logrus.Logger
	cancel   context.CancelFunc
	consumer sync.WaitGroup
}

func New(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*Services, error) {
	store := storage.NewPostgresStore(db.PG, logger)
	metrics := NewMetrics(prometheus.DefaultRegisterer, logger)

	health := NewHealthService(prometheus.DefaultRegisterer, logger)
	health.AddCritical("postgresql", db.PG.Ping)
	health.AddCritical("redis", func(ctx context.Context) error { return db.Redis.Ping(ctx).Err() })
	if db.Neo4j != nil {
		health.AddNonCritical("neo4j", db.Neo4j.VerifyConnectivity)
	}

	var locker Locker = lock.NewLocal()
	if cfg.Profile.DistributedLock {
		locker = lock.Chain{locker, lock.NewRedis(db.Redis, cfg.Profile.LockTTL, logger)}
	}

	var embedder Embedder
	if cfg.Embedding.Enabled {
		embedder = embedding.New(&cfg.Embedding, db.Redis, logger)
	} else {
		logger.Warn("Embedding service disabled: articles are stored without vectors")
	}

	validator, err := validation.NewSchemaValidator()
	if err != nil {
		return nil, err
	}

	builder := NewProfileBuilder(store, locker, &cfg.Ranking, cfg.Embedding.Dimensions, metrics, logger)
	updater := NewProfileUpdater(builder, &cfg.Profile, metrics, logger)

	trending := NewTrendingSelector(store, logger)
	ranker := NewDiversityRanker(&cfg.Ranking, logger)
	orchestrator := NewRecommendationOrchestrator(store, trending, ranker, &cfg.Ranking, metrics, logger)

	s := &Services{
		Store:                      store,
		Metrics:                    metrics,
		Health:                     health,
		RateLimit:                  NewRateLimitService(&cfg.RateLimit, logger, db.Redis),
		ProfileBuilder:             builder,
		ProfileUpdater:             updater,
		RecommendationOrchestrator: orchestrator,
		Ingestion:                  NewIngestionService(store, embedder, metrics, logger),
		Backfill:                   NewEmbeddingBackfill(store, embedder, cfg.Backfill.Interval, cfg.Backfill.BatchSize, metrics, logger),
		Validator:                  validator,
		logger:                     logger,
	}

	var sink InteractionSink
	if db.Neo4j != nil {
		s.Graph = graph.NewInteractionGraph(db.Neo4j, &cfg.Neo4j, logger)
		sink = s.Graph
	}
	s.Interactions = NewInteractionService(store, updater, sink, logger)

	if cfg.Kafka.Enabled {
		s.MessageBus = messaging.NewMessageBus(&cfg.Kafka, validator, logger)
	}

	return s, nil
}

// Publisher returns the async ingestion path, or nil when Kafka is disabled.
func (s *Services) Publisher() ArticlePublisher {
	if s.MessageBus == nil {
		return nil
	}
	return s.MessageBus
}

// Start launches the background workers.
func (s *Services) Start() {
	s.ProfileUpdater.Start()
	s.Backfill.Start()
	s.Health.StartSystemMetrics(15 * time.Second)
	if s.Graph != nil {
		s.Graph.Start()
	}

	if s.MessageBus != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.consumer.Add(1)
		go func() {
			defer s.consumer.Done()
			err := s.MessageBus.Consume(ctx, func(ctx context.Context, message messaging.ArticleMessage) error {
				_, err := s.Ingestion.Ingest(ctx, message.Articles)
				return err
			})
			if err != nil && ctx.Err() == nil {
				s.logger.WithError(err).Error("Article ingestion consumer stopped")
			}
		}()
		s.logger.Info("Article ingestion consumer started")
	}
}

// Stop drains the background workers in dependency order.
func (s *Services) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.consumer.Wait()
	}
	if s.MessageBus != nil {
		if err := s.MessageBus.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close message bus")
		}
	}
	s.ProfileUpdater.Stop()
	s.Backfill.Stop()
	s.Health.Stop()
	if s.Graph != nil {
		s.Graph.Stop()
	}
}
