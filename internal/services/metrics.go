package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Metrics holds the Prometheus collectors of the ranking pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	recommendations      *prometheus.CounterVec
	recommendationTime   *prometheus.HistogramVec
	recommendationSize   prometheus.Histogram
	profileRebuilds      *prometheus.CounterVec
	profileQueueDropped  prometheus.Counter
	articlesIngested     *prometheus.CounterVec
	embeddingsBackfilled prometheus.Counter
}

func NewMetrics(registerer prometheus.Registerer, logger *logrus.Logger) *Metrics {
	m := &Metrics{
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsrank_recommendations_total",
			Help: "Recommendation requests served, by strategy",
		}, []string{"strategy"}),
		recommendationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsrank_recommendation_duration_seconds",
			Help:    "Time spent building a recommendation list",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),
		recommendationSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsrank_recommendation_size",
			Help:    "Number of articles returned per recommendation request",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		profileRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsrank_profile_rebuilds_total",
			Help: "Profile rebuilds by outcome (updated, skipped, failed)",
		}, []string{"outcome"}),
		profileQueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsrank_profile_queue_dropped_total",
			Help: "Profile rebuild requests dropped because the queue was full",
		}),
		articlesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsrank_articles_ingested_total",
			Help: "Ingested articles by result",
		}, []string{"result"}),
		embeddingsBackfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsrank_embeddings_backfilled_total",
			Help: "Article embeddings filled in after ingestion",
		}),
	}

	collectors := map[string]prometheus.Collector{
		"newsrank_recommendations_total":           m.recommendations,
		"newsrank_recommendation_duration_seconds": m.recommendationTime,
		"newsrank_recommendation_size":             m.recommendationSize,
		"newsrank_profile_rebuilds_total":          m.profileRebuilds,
		"newsrank_profile_queue_dropped_total":     m.profileQueueDropped,
		"newsrank_articles_ingested_total":         m.articlesIngested,
		"newsrank_embeddings_backfilled_total":     m.embeddingsBackfilled,
	}
	// Register metrics with error handling - ignore if already registered
	for name, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				logger.WithError(err).Warnf("Failed to register %s metric", name)
			}
		}
	}

	return m
}

func (m *Metrics) Recommendation(strategy string, size int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.recommendations.WithLabelValues(strategy).Inc()
	m.recommendationTime.WithLabelValues(strategy).Observe(elapsed.Seconds())
	m.recommendationSize.Observe(float64(size))
}

func (m *Metrics) ProfileRebuild(outcome string) {
	if m == nil {
		return
	}
	m.profileRebuilds.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ProfileQueueDropped() {
	if m == nil {
		return
	}
	m.profileQueueDropped.Inc()
}

func (m *Metrics) ArticlesIngested(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.articlesIngested.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) EmbeddingsBackfilled(n int) {
	if m == nil || n == 0 {
		return
	}
	m.embeddingsBackfilled.Add(float64(n))
}
