package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/services"
	"github.com/temcen/newsrank/pkg/models"
)

type ArticleHandler struct {
	logger    *logrus.Logger
	ingester  ArticleIngester
	publisher services.ArticlePublisher
	validator *validator.Validate
}

// NewArticleHandler wires ingestion. publisher is nil when Kafka is disabled.
func NewArticleHandler(logger *logrus.Logger, ingester ArticleIngester, publisher services.ArticlePublisher) *ArticleHandler {
	return &ArticleHandler{
		logger:    logger,
		ingester:  ingester,
		publisher: publisher,
		validator: validator.New(),
	}
}

func (h *ArticleHandler) bind(c *gin.Context) (*models.ArticleBatchRequest, bool) {
	var req models.ArticleBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
		return nil, false
	}
	if err := h.validator.Struct(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return nil, false
	}
	return &req, true
}

// Ingest handles POST /api/v1/articles
func (h *ArticleHandler) Ingest(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	report, err := h.ingester.Ingest(c.Request.Context(), req.Articles)
	if err != nil {
		respondServiceError(c, h.logger, err, "INGESTION_FAILED", "Failed to ingest articles")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

// IngestAsync handles POST /api/v1/articles/async
func (h *ArticleHandler) IngestAsync(c *gin.Context) {
	if h.publisher == nil {
		respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Asynchronous ingestion is disabled")
		return
	}

	req, ok := h.bind(c)
	if !ok {
		return
	}

	if err := h.publisher.PublishArticles(c.Request.Context(), req.Articles); err != nil {
		h.logger.WithError(err).Error("Failed to queue articles")
		respondError(c, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "Failed to queue articles")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "Articles queued for ingestion",
		"received": len(req.Articles),
	})
}
