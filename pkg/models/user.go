package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID `json:"id" db:"id"`
	InterestVector []float32 `json:"-" db:"interest_vector"` // nil for cold users
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

func (u *User) IsCold() bool {
	return u == nil || len(u.InterestVector) == 0
}

const (
	InteractionClick   = "click"
	InteractionLike    = "like"
	InteractionDislike = "dislike"
)

type Interaction struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ArticleID uuid.UUID `json:"article_id" db:"article_id"`
	Kind      string    `json:"interaction_type" db:"interaction_type"`
	Timestamp time.Time `json:"timestamp" db:"ts"`
}

type InteractionRequest struct {
	UserID    uuid.UUID `json:"user_id" validate:"required"`
	ArticleID uuid.UUID `json:"article_id" validate:"required"`
	Kind      string    `json:"interaction_type" validate:"omitempty,max=32"`
}

type ProfileRebuildResponse struct {
	UserID           uuid.UUID `json:"user_id"`
	Updated          bool      `json:"updated"`
	TotalWeight      float64   `json:"total_weight"`
	InteractionsUsed int       `json:"interactions_used"`
	Reason           string    `json:"reason,omitempty"`
}
