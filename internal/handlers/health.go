package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/services"
)

// dependencyImpact names what stops working when a dependency check fails.
var dependencyImpact = map[string]string{
	"postgresql": "recommendations, interactions and ingestion",
	"redis":      "rate limiting, rebuild locks and the embedding cache",
	"neo4j":      "interaction graph mirror",
}

type healthResponse struct {
	*services.HealthStatus
	Impact []string `json:"impact,omitempty"`
}

type HealthHandler struct {
	logger        *logrus.Logger
	healthService HealthChecker
}

func NewHealthHandler(logger *logrus.Logger, healthService HealthChecker) *HealthHandler {
	return &HealthHandler{
		logger:        logger,
		healthService: healthService,
	}
}

// Check reports readiness. Degraded keeps serving with 200 and flags the
// paused features; unhealthy answers 503 so load balancers drain the node.
func (h *HealthHandler) Check(c *gin.Context) {
	status := h.healthService.CheckHealth(c.Request.Context())
	resp := healthResponse{HealthStatus: status}

	var httpStatus int
	switch status.Status {
	case "healthy":
		httpStatus = http.StatusOK
	case "degraded":
		httpStatus = http.StatusOK
		resp.Impact = impactOf(status.NonCritical)
	case "unhealthy":
		httpStatus = http.StatusServiceUnavailable
		resp.Impact = impactOf(append(append([]string{}, status.Critical...), status.NonCritical...))
	default:
		h.logger.WithField("status", status.Status).Error("Health check returned an unknown status")
		httpStatus = http.StatusInternalServerError
	}

	if len(resp.Impact) > 0 {
		h.logger.WithFields(logrus.Fields{
			"status": status.Status,
			"impact": resp.Impact,
		}).Warn("Serving with failed dependencies")
	}

	c.Header("Cache-Control", "no-store")
	c.Header("X-Health-Status", status.Status)
	c.JSON(httpStatus, resp)
}

// Live answers without touching any dependency.
func (h *HealthHandler) Live(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"status": "alive", "timestamp": time.Now().UTC()})
}

func impactOf(failed []string) []string {
	impact := make([]string, 0, len(failed))
	for _, name := range failed {
		if what, ok := dependencyImpact[name]; ok {
			impact = append(impact, what)
		} else {
			impact = append(impact, name)
		}
	}
	return impact
}
