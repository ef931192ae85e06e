package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/pkg/models"
)

const maxBackfillBatch = 500

type AdminHandler struct {
	logger     *logrus.Logger
	backfiller EmbeddingBackfiller
}

func NewAdminHandler(logger *logrus.Logger, backfiller EmbeddingBackfiller) *AdminHandler {
	return &AdminHandler{
		logger:     logger,
		backfiller: backfiller,
	}
}

// BackfillEmbeddings handles POST /api/v1/admin/embeddings/backfill?batch=N
func (h *AdminHandler) BackfillEmbeddings(c *gin.Context) {
	batch := 0
	if raw := c.Query("batch"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxBackfillBatch {
			respondError(c, http.StatusBadRequest, "INVALID_BATCH",
				"batch must be an integer between 1 and "+strconv.Itoa(maxBackfillBatch))
			return
		}
		batch = parsed
	}

	embedded, err := h.backfiller.Backfill(c.Request.Context(), batch)
	if err != nil {
		respondServiceError(c, h.logger, err, "BACKFILL_FAILED", "Failed to backfill embeddings")
		return
	}

	h.logger.WithField("embedded", embedded).Info("Manual embedding backfill completed")
	c.JSON(http.StatusOK, models.BackfillResponse{
		Embedded:    embedded,
		CompletedAt: time.Now().UTC(),
	})
}
