package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/pkg/models"
)

type UserHandler struct {
	logger       *logrus.Logger
	interactions InteractionRecorder
	profiles     ProfileBuilder
}

func NewUserHandler(logger *logrus.Logger, interactions InteractionRecorder, profiles ProfileBuilder) *UserHandler {
	return &UserHandler{
		logger:       logger,
		interactions: interactions,
		profiles:     profiles,
	}
}

// GetInteractions handles GET /api/v1/users/:userId/interactions
func (h *UserHandler) GetInteractions(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	interactions, err := h.interactions.GetUserInteractions(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.logger, err, "INTERACTIONS_FAILED", "Failed to load interactions")
		return
	}
	if interactions == nil {
		interactions = []models.Interaction{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  interactions,
		"total": len(interactions),
	})
}

// RebuildProfile handles POST /api/v1/users/:userId/profile/rebuild
func (h *UserHandler) RebuildProfile(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	result, err := h.profiles.BuildProfile(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, h.logger, err, "PROFILE_REBUILD_FAILED", "Failed to rebuild profile")
		return
	}

	c.JSON(http.StatusOK, models.ProfileRebuildResponse{
		UserID:           result.UserID,
		Updated:          result.Updated,
		TotalWeight:      result.TotalWeight,
		InteractionsUsed: result.InteractionsUsed,
		Reason:           result.Reason,
	})
}
