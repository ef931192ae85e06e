package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/temcen/newsrank/internal/app"
	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/internal/database"
	"github.com/temcen/newsrank/internal/services"
	"github.com/temcen/newsrank/pkg/models"
)

// serviceBackend runs commands in-process on the same services the server
// builds. Background workers are not started.
type serviceBackend struct {
	cfg *config.Config
	db  *database.Database
	svc *services.Services
}

// OpenServices connects to the configured stores and builds the services.
func OpenServices(cfg *config.Config) (Backend, error) {
	logger := app.NewLogger(&cfg.Logging)

	db, err := database.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	svc, err := services.New(cfg, logger, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return &serviceBackend{cfg: cfg, db: db, svc: svc}, nil
}

func (b *serviceBackend) Migrate(ctx context.Context) error {
	if err := b.svc.Store.Migrate(ctx, b.cfg.Embedding.Dimensions); err != nil {
		return err
	}
	// connections opened before the extension existed lack the vector codecs
	b.db.PG.Reset()
	return nil
}

func (b *serviceBackend) Recommend(ctx context.Context, userID uuid.UUID, limit int) (*services.RecommendationResult, error) {
	return b.svc.RecommendationOrchestrator.Recommend(ctx, userID, limit)
}

func (b *serviceBackend) BuildProfile(ctx context.Context, userID uuid.UUID) (*services.ProfileResult, error) {
	return b.svc.ProfileBuilder.BuildProfile(ctx, userID)
}

func (b *serviceBackend) Backfill(ctx context.Context, batchSize int) (int, error) {
	return b.svc.Backfill.Backfill(ctx, batchSize)
}

func (b *serviceBackend) Ingest(ctx context.Context, inputs []models.ArticleInput) (*models.IngestReport, error) {
	return b.svc.Ingestion.Ingest(ctx, inputs)
}

func (b *serviceBackend) Close() error {
	return b.db.Close()
}
