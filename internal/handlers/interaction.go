package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/pkg/models"
)

type InteractionHandler struct {
	logger       *logrus.Logger
	interactions InteractionRecorder
	schemas      schemaValidator
	validator    *validator.Validate
}

func NewInteractionHandler(logger *logrus.Logger, interactions InteractionRecorder, schemas schemaValidator) *InteractionHandler {
	return &InteractionHandler{
		logger:       logger,
		interactions: interactions,
		schemas:      schemas,
		validator:    validator.New(),
	}
}

// Record handles POST /api/v1/interactions
func (h *InteractionHandler) Record(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	if h.schemas != nil {
		if result := h.schemas.ValidateInteraction(body); !result.Valid {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "VALIDATION_FAILED",
					"message": "Request validation failed",
					"details": result.Errors,
				},
			})
			return
		}
	}

	var req models.InteractionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	interaction, err := h.interactions.RecordInteraction(c.Request.Context(), &req)
	if err != nil {
		respondServiceError(c, h.logger, err, "INTERACTION_FAILED", "Failed to record interaction")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data":    interaction,
		"message": "Interaction recorded successfully",
	})
}
