package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/config"
)

type profileBuilder interface {
	BuildProfile(ctx context.Context, userID uuid.UUID) (*ProfileResult, error)
}

// ProfileUpdater runs profile rebuilds in the background. Same-user
// serialization is provided by the builder's lock.
type ProfileUpdater struct {
	builder  profileBuilder
	queue    chan uuid.UUID
	workers  int
	timeout  time.Duration
	metrics  *Metrics
	logger   *logrus.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	start    sync.Once
	stop     sync.Once
}

func NewProfileUpdater(builder profileBuilder, cfg *config.ProfileConfig, metrics *Metrics, logger *logrus.Logger) *ProfileUpdater {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &ProfileUpdater{
		builder:  builder,
		queue:    make(chan uuid.UUID, queueSize),
		workers:  workers,
		timeout:  cfg.RebuildTimeout,
		metrics:  metrics,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

func (u *ProfileUpdater) Start() {
	u.start.Do(func() {
		for i := 0; i < u.workers; i++ {
			u.wg.Add(1)
			go u.worker(i)
		}
		u.logger.WithField("workers", u.workers).Info("Profile update workers started")
	})
}

// Stop waits for in-flight rebuilds; queued ones are discarded.
func (u *ProfileUpdater) Stop() {
	u.stop.Do(func() {
		close(u.stopChan)
		u.wg.Wait()
	})
}

// TriggerRebuild queues a user for profile update without blocking.
func (u *ProfileUpdater) TriggerRebuild(userID uuid.UUID) bool {
	select {
	case <-u.stopChan:
		return false
	default:
	}

	select {
	case u.queue <- userID:
		return true
	default:
		u.metrics.ProfileQueueDropped()
		u.logger.WithField("user_id", userID).Warn("Profile update queue full")
		return false
	}
}

func (u *ProfileUpdater) Pending() int {
	return len(u.queue)
}

func (u *ProfileUpdater) worker(id int) {
	defer u.wg.Done()

	for {
		select {
		case userID := <-u.queue:
			u.process(id, userID)
		case <-u.stopChan:
			return
		}
	}
}

func (u *ProfileUpdater) process(workerID int, userID uuid.UUID) {
	ctx := context.Background()
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			u.logger.WithFields(logrus.Fields{
				"user_id": userID,
				"panic":   r,
			}).Error("Profile rebuild panicked")
		}
	}()

	if _, err := u.builder.BuildProfile(ctx, userID); err != nil {
		u.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"worker":  workerID,
		}).Error("Failed to update user profile")
	}
}
