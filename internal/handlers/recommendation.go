package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/pkg/models"
)

type RecommendationHandler struct {
	recommender  Recommender
	defaultLimit int
	maxLimit     int
	logger       *logrus.Logger
}

func NewRecommendationHandler(recommender Recommender, cfg *config.RankingConfig, logger *logrus.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		recommender:  recommender,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
		logger:       logger,
	}
}

// Get handles GET /api/v1/recommendations/:userId?limit=N
func (h *RecommendationHandler) Get(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > h.maxLimit {
			respondError(c, http.StatusBadRequest, "INVALID_LIMIT",
				"limit must be an integer between 1 and "+strconv.Itoa(h.maxLimit))
			return
		}
		limit = parsed
	}

	result, err := h.recommender.Recommend(c.Request.Context(), userID, limit)
	if err != nil {
		respondServiceError(c, h.logger, err, "RECOMMENDATION_FAILED", "Failed to generate recommendations")
		return
	}

	response := models.RecommendationResponse{
		UserID:          result.UserID,
		Strategy:        result.Strategy,
		Recommendations: make([]models.Recommendation, len(result.Articles)),
		GeneratedAt:     result.GeneratedAt,
	}
	for i := range result.Articles {
		response.Recommendations[i] = models.Recommendation{
			Position: i + 1,
			Trending: i < result.TrendingCount,
			Article:  &result.Articles[i],
		}
	}

	c.JSON(http.StatusOK, response)
}
