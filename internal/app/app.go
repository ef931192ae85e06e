package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/config"
	"github.com/temcen/newsrank/internal/database"
	"github.com/temcen/newsrank/internal/handlers"
	"github.com/temcen/newsrank/internal/middleware"
	"github.com/temcen/newsrank/internal/services"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: NewLogger(&cfg.Logging),
	}

	// Initialize database connections
	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	svc, err := services.New(cfg, app.logger, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = svc

	app.handlers = handlers.New(app.logger, cfg, svc)
	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Logger() *logrus.Logger {
	return a.logger
}

func (a *App) Services() *services.Services {
	return a.services
}

// Start launches the background workers. The HTTP server is owned by the caller.
func (a *App) Start() {
	a.services.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	stopped := make(chan struct{})
	go func() {
		a.services.Stop()
		close(stopped)
	}()

	var errs []error
	select {
	case <-stopped:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("background workers did not stop: %w", ctx.Err()))
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg *config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	a.router = newRouter(a.config, a.logger, a.handlers, a.services.RateLimit)
}

func newRouter(cfg *config.Config, logger *logrus.Logger, h *handlers.Handlers, limiter *services.RateLimitService) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(&cfg.Security.CORS))

	router.GET("/health", h.Health.Check)
	router.GET("/health/live", h.Health.Live)
	if cfg.Monitoring.Enabled {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	if cfg.RateLimit.Enabled && limiter != nil {
		api.Use(middleware.RateLimit(limiter, logger))
	}
	{
		api.GET("/recommendations/:userId", h.Recommendation.Get)

		api.POST("/interactions", h.Interaction.Record)

		users := api.Group("/users")
		{
			users.GET("/:userId/interactions", h.User.GetInteractions)
			users.POST("/:userId/profile/rebuild", h.User.RebuildProfile)
		}

		articles := api.Group("/articles")
		{
			articles.POST("", h.Article.Ingest)
			articles.POST("/async", h.Article.IngestAsync)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/embeddings/backfill", h.Admin.BackfillEmbeddings)
		}
	}

	return router
}
