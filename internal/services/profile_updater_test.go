package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/temcen/newsrank/internal/config"
)

type countingBuilder struct {
	mu      sync.Mutex
	calls   map[uuid.UUID]int
	block   chan struct{}
	panicOn uuid.UUID
}

func (b *countingBuilder) BuildProfile(_ context.Context, userID uuid.UUID) (*ProfileResult, error) {
	if b.block != nil {
		<-b.block
	}
	if userID == b.panicOn {
		panic("boom")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.calls == nil {
		b.calls = make(map[uuid.UUID]int)
	}
	b.calls[userID]++
	return &ProfileResult{UserID: userID, Updated: true}, nil
}

func (b *countingBuilder) count(userID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[userID]
}

func TestProfileUpdater_ProcessesQueuedRebuilds(t *testing.T) {
	builder := &countingBuilder{}
	updater := NewProfileUpdater(builder, &config.ProfileConfig{Workers: 2, QueueSize: 10, RebuildTimeout: time.Second}, nil, testLogger())
	updater.Start()
	defer updater.Stop()

	userID := uuid.New()
	assert.True(t, updater.TriggerRebuild(userID))
	assert.True(t, updater.TriggerRebuild(userID))

	assert.Eventually(t, func() bool { return builder.count(userID) == 2 }, time.Second, 5*time.Millisecond)
}

func TestProfileUpdater_DropsWhenQueueFull(t *testing.T) {
	builder := &countingBuilder{}
	// Not started, so nothing drains the queue.
	updater := NewProfileUpdater(builder, &config.ProfileConfig{Workers: 1, QueueSize: 1}, nil, testLogger())

	assert.True(t, updater.TriggerRebuild(uuid.New()))
	assert.False(t, updater.TriggerRebuild(uuid.New()))
	assert.Equal(t, 1, updater.Pending())
}

func TestProfileUpdater_SurvivesPanic(t *testing.T) {
	bad := uuid.New()
	builder := &countingBuilder{panicOn: bad}
	updater := NewProfileUpdater(builder, &config.ProfileConfig{Workers: 1, QueueSize: 10}, nil, testLogger())
	updater.Start()
	defer updater.Stop()

	good := uuid.New()
	updater.TriggerRebuild(bad)
	updater.TriggerRebuild(good)

	assert.Eventually(t, func() bool { return builder.count(good) == 1 }, time.Second, 5*time.Millisecond)
}

func TestProfileUpdater_RejectsAfterStop(t *testing.T) {
	updater := NewProfileUpdater(&countingBuilder{}, &config.ProfileConfig{Workers: 1, QueueSize: 10}, nil, testLogger())
	updater.Start()
	updater.Stop()
	updater.Stop()

	assert.False(t, updater.TriggerRebuild(uuid.New()))
}
