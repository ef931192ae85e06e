package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	StrategyColdStart = "cold_start"
	StrategyPersonal  = "personalized"
)

type Recommendation struct {
	Position int      `json:"position"`
	Trending bool     `json:"trending"`
	Article  *Article `json:"article"`
}

type RecommendationResponse struct {
	UserID          uuid.UUID        `json:"user_id"`
	Strategy        string           `json:"strategy"`
	Recommendations []Recommendation `json:"recommendations"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

type BackfillResponse struct {
	Embedded    int       `json:"embedded"`
	CompletedAt time.Time `json:"completed_at"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type RateLimitInfo struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
	Allowed   bool  `json:"-"`
}
