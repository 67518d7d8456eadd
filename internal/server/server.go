// Package server contains the HTTP and WebSocket handlers for the feed API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "xclone/docs" // swagger docs
	"xclone/internal/config"
	"xclone/internal/database"
	"xclone/internal/middleware"
	"xclone/internal/models"
	"xclone/internal/notifications"
	"xclone/internal/repository"
	"xclone/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// PostAPI is the post read and create surface the handlers depend on.
type PostAPI interface {
	CreatePost(ctx context.Context, in service.CreatePostInput) (*models.Post, error)
	GetPost(ctx context.Context, id uint) (*models.Post, error)
	GetPostWithInteractions(ctx context.Context, id uint) (*models.PostWithInteractions, error)
	ListFeed(ctx context.Context, viewer string) ([]*models.Post, error)
}

// InteractionAPI is the like, retweet and reply surface the handlers depend on.
type InteractionAPI interface {
	ToggleLike(ctx context.Context, in service.InteractionInput) (*service.LikeResult, error)
	ToggleRetweet(ctx context.Context, in service.InteractionInput) (*service.RetweetResult, error)
	Reply(ctx context.Context, in service.ReplyInput) (*models.Post, error)
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	posts        PostAPI
	interactions InteractionAPI
	media        *service.MediaService

	notifier  *notifications.Notifier
	hub       *notifications.Hub
	publisher *notifications.FeedPublisher
}

// NewServer connects to the database, retrying until it answers or ctx ends,
// and to Redis when one is configured.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.ConnectWithRetry(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, notifications.ConnectRedis(ctx, cfg.RedisURL))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; events then only reach this instance's sockets.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}

	media := service.NewMediaService(cfg.UploadDir, cfg.MediaMaxFileSizeMB)
	hub := notifications.NewHub()
	notifier := notifications.NewNotifier(redisClient)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("xclone-api"),
		posts:          service.NewPostService(repository.NewPostRepository(db), media),
		interactions:   service.NewInteractionService(db),
		media:          media,
		notifier:       notifier,
		hub:            hub,
		publisher:      notifications.NewFeedPublisher(hub, notifier),
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	// Context middleware runs after tracing so both IDs reach the logs.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// Media is embedded by the frontend, which may live on another origin.
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	api.Get("/health", s.HealthCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/swagger/*", swagger.HandlerDefault)

	posts := api.Group("/posts")
	posts.Static("/uploads", s.media.UploadDir(), fiber.Static{MaxAge: 3600})
	posts.Get("/", s.GetFeed)
	posts.Post("/", s.CreatePost)
	// Specific /:id/:resource routes before the generic /:id route
	posts.Get("/:id/with-interactions", s.GetPostWithInteractions)
	posts.Post("/:id/like", s.ToggleLike)
	posts.Post("/:id/retweet", s.ToggleRetweet)
	posts.Post("/:id/reply", s.Reply)
	posts.Get("/:id", s.GetPost)

	ws := api.Group("/ws")
	ws.Use(s.WebSocketUpgrade)
	ws.Get("/feed", s.FeedWebSocketHandler())

	if s.config.StaticDir != "" {
		app.Static("/", s.config.StaticDir)
	}
}

// HealthCheck reports database reachability with the server time and version.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	status, overall, dbStatus := fiber.StatusOK, "ok", "connected"
	if err := s.pingDB(ctx); err != nil {
		status, overall, dbStatus = fiber.StatusServiceUnavailable, "error", "disconnected"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":   overall,
		"database": dbStatus,
		"time":     time.Now().UTC(),
		"version":  Version,
	})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so an
// unconfigured Redis does not make the instance unready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := s.pingDB(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"version": Version,
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

func (s *Server) pingDB(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// NewApp builds the Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	perFile := s.config.MediaMaxFileSize()
	if perFile <= 0 {
		perFile = service.DefaultMediaMaxFileSizeMB << 20
	}
	app := fiber.New(fiber.Config{
		AppName: "xclone API",
		// Room for a full set of attachments plus the text fields.
		BodyLimit: int(int64(models.MaxMediaPerPost)*perFile + 1<<20),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, &models.AppError{
					Code:    codeForStatus(fe.Code),
					Message: fe.Message,
				})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.notifier.Enabled() {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Warn("feed subscriber failed to start, events stay local",
				slog.String("error", err.Error()))
			// Publishing through Redis would never reach this hub.
			s.publisher = notifications.NewFeedPublisher(s.hub, nil)
		}
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port), slog.String("env", s.config.Env))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down feed hub", slog.String("error", err.Error()))
	}

	database.Close(s.db)

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
