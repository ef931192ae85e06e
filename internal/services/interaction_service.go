package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/storage"
	"github.com/temcen/newsrank/pkg/models"
)

const maxKindLength = 32

// InteractionService records user interactions and schedules profile rebuilds.
type InteractionService struct {
	store     InteractionStore
	rebuilder ProfileRebuilder
	sink      InteractionSink
	logger    *logrus.Logger
	now       func() time.Time
}

// NewInteractionService wires the interaction path. rebuilder and sink may be nil.
func NewInteractionService(store InteractionStore, rebuilder ProfileRebuilder, sink InteractionSink, logger *logrus.Logger) *InteractionService {
	return &InteractionService{
		store:     store,
		rebuilder: rebuilder,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
	}
}

// RecordInteraction stores the interaction, then triggers an asynchronous
// profile rebuild. The rebuild never blocks or fails the caller.
func (s *InteractionService) RecordInteraction(ctx context.Context, req *models.InteractionRequest) (*models.Interaction, error) {
	if req == nil || req.UserID == uuid.Nil || req.ArticleID == uuid.Nil {
		return nil, invalidInput("user_id and article_id are required")
	}

	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	if kind == "" {
		kind = models.InteractionClick
	}
	if len(kind) > maxKindLength {
		return nil, invalidInput("interaction_type longer than %d characters", maxKindLength)
	}

	interaction := &models.Interaction{
		ID:        uuid.New(),
		UserID:    req.UserID,
		ArticleID: req.ArticleID,
		Kind:      kind,
		Timestamp: s.now().UTC(),
	}

	if err := s.store.InsertInteraction(ctx, interaction); err != nil {
		if errors.Is(err, storage.ErrUnknownArticle) {
			return nil, invalidInput("article %s does not exist", req.ArticleID)
		}
		return nil, dependencyError("store interaction", err)
	}

	if s.rebuilder != nil {
		s.rebuilder.TriggerRebuild(interaction.UserID)
	}
	if s.sink != nil {
		s.sink.Enqueue(*interaction)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":          interaction.UserID,
		"article_id":       interaction.ArticleID,
		"interaction_type": interaction.Kind,
	}).Info("Recorded interaction")

	return interaction, nil
}

// GetUserInteractions returns the user's history, newest first.
func (s *InteractionService) GetUserInteractions(ctx context.Context, userID uuid.UUID) ([]models.Interaction, error) {
	if userID == uuid.Nil {
		return nil, invalidInput("user id is required")
	}

	interactions, err := s.store.GetInteractions(ctx, userID)
	if err != nil {
		return nil, dependencyError("load interactions", err)
	}

	sort.SliceStable(interactions, func(i, j int) bool {
		return interactions[i].Timestamp.After(interactions[j].Timestamp)
	})
	return interactions, nil
}
