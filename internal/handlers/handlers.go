package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/internal/services"
	"github.com/temcen/newsrank/internal/validation"
	"github.com/temcen/newsrank/pkg/models"
)

type Recommender interface {
	Recommend(ctx context.Context, userID uuid.UUID, limit int) (*services.RecommendationResult, error)
}

type InteractionRecorder interface {
	RecordInteraction(ctx context.Context, req *models.InteractionRequest) (*models.Interaction, error)
	GetUserInteractions(ctx context.Context, userID uuid.UUID) ([]models.Interaction, error)
}

type ProfileBuilder interface {
	BuildProfile(ctx context.Context, userID uuid.UUID) (*services.ProfileResult, error)
}

type ArticleIngester interface {
	Ingest(ctx context.Context, inputs []models.ArticleInput) (*models.IngestReport, error)
}

type EmbeddingBackfiller interface {
	Backfill(ctx context.Context, batchSize int) (int, error)
}

type HealthChecker interface {
	CheckHealth(ctx context.Context) *services.HealthStatus
}

type Handlers struct {
	Health         *HealthHandler
	Recommendation *RecommendationHandler
	Interaction    *InteractionHandler
	User           *UserHandler
	Article        *ArticleHandler
	Admin          *AdminHandler
}

func New(logger *logrus.Logger, cfg *config.Config, svc *services.Services) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, svc.Health),
		Recommendation: NewRecommendationHandler(svc.RecommendationOrchestrator, &cfg.Ranking, logger),
		Interaction:    NewInteractionHandler(logger, svc.Interactions, svc.Validator),
		User:           NewUserHandler(logger, svc.Interactions, svc.ProfileBuilder),
		Article:        NewArticleHandler(logger, svc.Ingestion, svc.Publisher()),
		Admin:          NewAdminHandler(logger, svc.Backfill),
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{Error: models.ErrorBody{Code: code, Message: message}})
}

// respondServiceError maps service errors onto HTTP statuses.
func respondServiceError(c *gin.Context, logger *logrus.Logger, err error, fallbackCode, message string) {
	entry := logger.WithError(err).WithField("path", c.FullPath())

	switch {
	case errors.Is(err, services.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		entry.Warn("Request timed out")
		respondError(c, http.StatusGatewayTimeout, "TIMEOUT", "Request timed out")
	case errors.Is(err, services.ErrUnavailable):
		respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", err.Error())
	case services.IsDependencyError(err):
		entry.Error(message)
		respondError(c, http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE", message)
	default:
		entry.Error(message)
		respondError(c, http.StatusInternalServerError, fallbackCode, message)
	}
}

func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil || userID == uuid.Nil {
		respondError(c, http.StatusBadRequest, "INVALID_USER_ID", "User ID must be a valid UUID")
		return uuid.Nil, false
	}
	return userID, true
}

// schemaValidator is implemented by validation.SchemaValidator.
type schemaValidator interface {
	ValidateInteraction(data interface{}) *validation.ValidationResult
}
