package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/pkg/models"
)

// RateLimitService is a Redis sorted-set sliding window limiter. It fails
// open when Redis is unreachable.
type RateLimitService struct {
	config      *config.RateLimitConfig
	logger      *logrus.Logger
	redisClient redis.UniversalClient
	now         func() time.Time
}

func NewRateLimitService(cfg *config.RateLimitConfig, logger *logrus.Logger, redisClient redis.UniversalClient) *RateLimitService {
	return &RateLimitService{
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
		now:         time.Now,
	}
}

func (s *RateLimitService) CheckLimit(ctx context.Context, clientKey string) *models.RateLimitInfo {
	limit := s.config.Requests
	window := s.config.Window

	key := fmt.Sprintf("rate_limit:client:%s", clientKey)
	now := s.now()
	windowStart := now.Add(-window)
	resetTime := now.Add(window).Unix()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pipe := s.redisClient.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to execute rate limit pipeline")
		// Return permissive result if Redis is down
		return &models.RateLimitInfo{
			Limit:     limit,
			Remaining: limit,
			ResetTime: resetTime,
			Allowed:   true,
		}
	}

	// The count excludes the request just added.
	currentCount := int(countCmd.Val())
	remaining := limit - currentCount - 1
	if remaining < 0 {
		remaining = 0
	}

	return &models.RateLimitInfo{
		Limit:     limit,
		Remaining: remaining,
		ResetTime: resetTime,
		Allowed:   currentCount < limit,
	}
}
