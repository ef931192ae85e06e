package graph

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/pkg/models"
)

type recordingWriter struct {
	mu     sync.Mutex
	writes map[string]int
	rows   int
	err    error
}

func (w *recordingWriter) write(_ context.Context, relType string, rows []map[string]interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writes == nil {
		w.writes = make(map[string]int)
	}
	w.writes[relType]++
	w.rows += len(rows)
	return w.err
}

func (w *recordingWriter) totalRows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func interaction(kind string) models.Interaction {
	return models.Interaction{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		ArticleID: uuid.New(),
		Kind:      kind,
		Timestamp: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestRelationType(t *testing.T) {
	tests := map[string]string{
		models.InteractionClick:   "CLICKED",
		models.InteractionLike:    "LIKED",
		models.InteractionDislike: "DISLIKED",
		"share":                   "INTERACTED",
		"":                        "INTERACTED",
	}
	for kind, want := range tests {
		assert.Equal(t, want, RelationType(kind), kind)
	}
}

func TestGroupByRelation(t *testing.T) {
	batch := []models.Interaction{
		interaction(models.InteractionLike),
		interaction(models.InteractionClick),
		interaction(models.InteractionLike),
		interaction("bookmark"),
	}

	groups := groupByRelation(batch)
	require.Len(t, groups, 3)
	assert.Equal(t, "CLICKED", groups[0].relType)
	assert.Equal(t, "INTERACTED", groups[1].relType)
	assert.Equal(t, "LIKED", groups[2].relType)
	assert.Len(t, groups[2].rows, 2)
	assert.Equal(t, batch[0].UserID.String(), groups[2].rows[0]["user_id"])
}

func TestInteractionGraph_FlushesFullBatch(t *testing.T) {
	writer := &recordingWriter{}
	g := newInteractionGraph(writer, &config.Neo4jConfig{BatchSize: 3, FlushInterval: time.Hour, QueueSize: 10}, testLogger())
	g.Start()
	defer g.Stop()

	for i := 0; i < 3; i++ {
		g.Enqueue(interaction(models.InteractionClick))
	}

	assert.Eventually(t, func() bool { return writer.totalRows() == 3 }, time.Second, 5*time.Millisecond)
}

func TestInteractionGraph_FlushesOnTimer(t *testing.T) {
	writer := &recordingWriter{}
	g := newInteractionGraph(writer, &config.Neo4jConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond}, testLogger())
	g.Start()
	defer g.Stop()

	g.Enqueue(interaction(models.InteractionLike))

	assert.Eventually(t, func() bool { return writer.totalRows() == 1 }, time.Second, 5*time.Millisecond)
}

func TestInteractionGraph_StopFlushesRemainder(t *testing.T) {
	writer := &recordingWriter{}
	g := newInteractionGraph(writer, &config.Neo4jConfig{BatchSize: 100, FlushInterval: time.Hour}, testLogger())
	g.Start()

	g.Enqueue(interaction(models.InteractionClick))
	g.Enqueue(interaction(models.InteractionDislike))
	g.Stop()
	g.Stop()

	assert.Equal(t, 2, writer.totalRows())
}

func TestInteractionGraph_WriteErrorIsLogged(t *testing.T) {
	writer := &recordingWriter{err: errors.New("neo4j unavailable")}
	g := newInteractionGraph(writer, &config.Neo4jConfig{BatchSize: 1, FlushInterval: time.Hour}, testLogger())
	g.Start()

	g.Enqueue(interaction(models.InteractionClick))
	g.Stop()

	assert.Equal(t, 1, writer.totalRows())
}

func TestInteractionGraph_EnqueueDropsWhenFull(t *testing.T) {
	writer := &recordingWriter{}
	g := newInteractionGraph(writer, &config.Neo4jConfig{BatchSize: 100, FlushInterval: time.Hour, QueueSize: 1}, testLogger())

	// Not started: the second enqueue finds the queue full.
	g.Enqueue(interaction(models.InteractionClick))
	g.Enqueue(interaction(models.InteractionClick))
	assert.Len(t, g.queue, 1)

	var nilGraph *InteractionGraph
	assert.NotPanics(t, func() { nilGraph.Enqueue(interaction(models.InteractionClick)) })
}
