// Package server contains the HTTP handlers for the feed, votes and reputation.
package server

import (
	"context"
	"fmt"
	"time"

	"hushfeed/internal/anon"
	"hushfeed/internal/cache"
	"hushfeed/internal/config"
	"hushfeed/internal/database"
	"hushfeed/internal/featureflags"
	"hushfeed/internal/ledger"
	"hushfeed/internal/middleware"
	"hushfeed/internal/models"
	"hushfeed/internal/notifications"
	"hushfeed/internal/observability"
	"hushfeed/internal/repository"
	"hushfeed/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	featureFlags   *featureflags.Manager
	notifier       *notifications.Notifier
	counterHub     *notifications.CounterHub
	stopCounters   context.CancelFunc
	ledger         *ledger.Ledger
	feedService    *service.FeedService
	repService     *service.ReputationService
}

// NewServer connects the database and redis and builds a Server over them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; rate limits then fail open and nothing is cached
// or published.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	middleware.InitMiddleware(cfg)
	cache.SetClient(redisClient)

	flags := featureflags.NewManager(cfg.FeatureFlags)
	notifier := notifications.NewNotifier(redisClient, flags)

	l := ledger.New(repository.NewLedgerStore(db),
		ledger.WithPolicy(ledger.PolicyFromConfig(cfg)),
		ledger.WithRetry(ledger.RetryPolicyFromConfig(cfg)),
		ledger.WithPublisher(notifier),
		ledger.WithLogger(observability.NewLedgerLogger(middleware.Logger)),
	)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics(observability.ServiceName),
		featureFlags:   flags,
		notifier:       notifier,
		counterHub:     notifications.NewCounterHub(),
		ledger:         l,
		feedService:    service.NewFeedService(repository.NewFeedRepository(db), anon.NewNamer(cfg.AnonSecret)),
		repService:     service.NewReputationService(repository.NewUserRepository(db), flags),
	}
	return s, nil
}

// NewApp builds the fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "hushfeed",
		BodyLimit: 64 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "Unhandled error", "error", err)
			return models.RespondWithAppError(c, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: s.config.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, OPTIONS",
		MaxAge:       86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/flags", middleware.OptionalAuth, s.GetFeatureFlags)
	api.Get("/leaderboard", s.GetLeaderboard)

	posts := api.Group("/posts")
	posts.Get("/", middleware.OptionalAuth, s.GetPosts)
	posts.Post("/", middleware.AuthRequired, s.CreatePost)
	// Specific /:id/:resource routes before the generic /:id route
	posts.Get("/:id/comments", middleware.OptionalAuth, s.GetComments)
	posts.Post("/:id/comments", middleware.AuthRequired, s.CreateComment)
	posts.Get("/:id", middleware.OptionalAuth, s.GetPost)

	voteLimit := middleware.RateLimit(s.redis, s.config.VoteRateLimitPerMinute, time.Minute, "vote")
	items := api.Group("/items/:kind/:id")
	items.Get("/vote", middleware.AuthRequired, s.GetVote)
	items.Post("/vote", middleware.AuthRequired, voteLimit, s.CastVote)
	items.Put("/vote", middleware.AuthRequired, voteLimit, s.SetVote)
	items.Get("/stream", middleware.OptionalAuth, s.StreamCounters)

	me := api.Group("/users/me", middleware.AuthRequired)
	me.Get("/", s.GetMyProfile)
	me.Get("/xp-events", s.GetMyXPEvents)
}

// HealthCheck reports database and redis reachability. Redis is optional,
// so only the database decides the status code.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// StartCounterFeed subscribes the counter hub to redis so counter streams
// see changes committed by every instance. Without redis it does nothing.
func (s *Server) StartCounterFeed(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	if err := s.counterHub.StartWiring(ctx, s.notifier); err != nil {
		cancel()
		return err
	}
	s.stopCounters = cancel
	return nil
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	if err := s.StartCounterFeed(context.Background()); err != nil {
		middleware.Logger.Warn("Counter feed unavailable, streams will stay idle", "error", err)
	}
	s.app = s.NewApp()
	middleware.Logger.Info("Server starting", "port", s.config.Port, "env", s.config.Env)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops the HTTP server and closes the database and redis.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopCounters != nil {
		s.stopCounters()
	}
	s.counterHub.Close()

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("Error shutting down HTTP server", "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("Error closing database", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("Error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
