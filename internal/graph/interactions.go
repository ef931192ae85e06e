// Package graph mirrors user/article interactions into Neo4j as typed
// relationships. The mirror is write-only and never read by the ranking path.
package graph

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/pkg/models"
)

// RelationType maps an interaction kind to the relationship stored in Neo4j.
func RelationType(kind string) string {
	switch kind {
	case models.InteractionClick:
		return "CLICKED"
	case models.InteractionLike:
		return "LIKED"
	case models.InteractionDislike:
		return "DISLIKED"
	default:
		return "INTERACTED"
	}
}

type batchWriter interface {
	write(ctx context.Context, relType string, rows []map[string]interface{}) error
}

// InteractionGraph batches interactions and flushes them when the batch is
// full, on a timer, and once more on Stop.
type InteractionGraph struct {
	writer        batchWriter
	queue         chan models.Interaction
	batchSize     int
	flushInterval time.Duration
	logger        *logrus.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewInteractionGraph(driver neo4j.DriverWithContext, cfg *config.Neo4jConfig, logger *logrus.Logger) *InteractionGraph {
	return newInteractionGraph(&neo4jWriter{driver: driver}, cfg, logger)
}

func newInteractionGraph(writer batchWriter, cfg *config.Neo4jConfig, logger *logrus.Logger) *InteractionGraph {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &InteractionGraph{
		writer:        writer,
		queue:         make(chan models.Interaction, queueSize),
		batchSize:     batchSize,
		flushInterval: interval,
		logger:        logger,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Enqueue never blocks; interactions are dropped when the queue is full.
func (g *InteractionGraph) Enqueue(interaction models.Interaction) {
	if g == nil {
		return
	}
	select {
	case g.queue <- interaction:
	default:
		g.logger.WithField("user_id", interaction.UserID).Warn("Graph update queue full, dropping interaction")
	}
}

func (g *InteractionGraph) Start() {
	if g.started.CompareAndSwap(false, true) {
		go g.run()
	}
}

// Stop flushes what is queued and waits for the worker to exit.
func (g *InteractionGraph) Stop() {
	g.stopOnce.Do(func() {
		close(g.stop)
		if g.started.Load() {
			<-g.done
		}
	})
}

func (g *InteractionGraph) run() {
	defer close(g.done)

	ticker := time.NewTicker(g.flushInterval)
	defer ticker.Stop()

	batch := make([]models.Interaction, 0, g.batchSize)
	for {
		select {
		case interaction := <-g.queue:
			batch = append(batch, interaction)
			if len(batch) >= g.batchSize {
				g.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				g.flush(batch)
				batch = batch[:0]
			}
		case <-g.stop:
			for {
				select {
				case interaction := <-g.queue:
					batch = append(batch, interaction)
				default:
					if len(batch) > 0 {
						g.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (g *InteractionGraph) flush(batch []models.Interaction) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, group := range groupByRelation(batch) {
		if err := g.writer.write(ctx, group.relType, group.rows); err != nil {
			g.logger.WithError(err).WithFields(logrus.Fields{
				"relationship": group.relType,
				"batch_size":   len(group.rows),
			}).Error("Failed to process Neo4j batch update")
			continue
		}
		g.logger.WithFields(logrus.Fields{
			"relationship": group.relType,
			"batch_size":   len(group.rows),
		}).Debug("Processed Neo4j batch update")
	}
}

type relationGroup struct {
	relType string
	rows    []map[string]interface{}
}

// groupByRelation splits a batch per relationship type, since Cypher cannot
// parameterize relationship types. Groups are sorted by type.
func groupByRelation(batch []models.Interaction) []relationGroup {
	byType := make(map[string][]map[string]interface{})
	for _, in := range batch {
		relType := RelationType(in.Kind)
		byType[relType] = append(byType[relType], map[string]interface{}{
			"user_id":    in.UserID.String(),
			"article_id": in.ArticleID.String(),
			"ts":         in.Timestamp.UTC(),
		})
	}

	groups := make([]relationGroup, 0, len(byType))
	for relType, rows := range byType {
		groups = append(groups, relationGroup{relType: relType, rows: rows})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].relType < groups[j].relType })
	return groups
}

type neo4jWriter struct {
	driver neo4j.DriverWithContext
}

func (w *neo4jWriter) write(ctx context.Context, relType string, rows []map[string]interface{}) error {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	// relType comes from RelationType, never from user input.
	cypher := `
		UNWIND $relationships AS rel
		MERGE (u:User {id: rel.user_id})
		MERGE (a:Article {id: rel.article_id})
		MERGE (u)-[r:` + relType + `]->(a)
		SET r.last_at = rel.ts,
			r.count = coalesce(r.count, 0) + 1`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, cypher, map[string]interface{}{
			"relationships": rows,
		})
		if err != nil {
			return nil, err
		}
		summary, err := result.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return summary.Counters(), nil
	})
	return err
}
