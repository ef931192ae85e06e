package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/pkg/models"
)

type limiter interface {
	CheckLimit(ctx context.Context, clientKey string) *models.RateLimitInfo
}

// RateLimit applies a per-client-IP limit. The limiter fails open, so a
// Redis outage never rejects requests.
func RateLimit(rateLimitService limiter, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.ClientIP()
		info := rateLimitService.CheckLimit(c.Request.Context(), clientKey)

		// Set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime, 10))

		if !info.Allowed {
			logger.WithFields(logrus.Fields{
				"client_ip": clientKey,
				"limit":     info.Limit,
			}).Warn("Rate limit exceeded")

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Rate limit exceeded. Please try again later.",
				},
				"rate_limit": info,
			})
			return
		}

		c.Next()
	}
}
