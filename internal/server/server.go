// Package server contains the HTTP handlers for the application's API
// endpoints and wires the job engine into the application lifecycle.
package server

import (
	"context"
	"fmt"
	"time"

	"intelliblog/internal/antispam"
	"intelliblog/internal/cache"
	"intelliblog/internal/classifier"
	"intelliblog/internal/config"
	"intelliblog/internal/database"
	"intelliblog/internal/engine"
	"intelliblog/internal/mailer"
	"intelliblog/internal/middleware"
	"intelliblog/internal/models"
	"intelliblog/internal/repository"
	"intelliblog/internal/service"
	"intelliblog/internal/workflows"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
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
	promMiddleware *fiberprometheus.FiberPrometheus

	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	commentRepo    repository.CommentRepository
	subRepo        repository.SubscriptionRepository
	moderationRepo repository.ModerationRepository
	jobRepo        repository.JobRepository

	engine *engine.Engine
	gate   *antispam.Gate
	mail   mailer.Mailer

	postService    *service.PostService
	commentService *service.CommentService
	subService     *service.SubscriptionService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient, classifier.NewClient(cfg), mailer.New(cfg))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use this with a sqlite DB, a fake classifier, and a fake mailer.
func NewServerWithDeps(
	cfg *config.Config,
	db *gorm.DB,
	redisClient *redis.Client,
	cls classifier.Classifier,
	mail mailer.Mailer,
) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	moderationRepo := repository.NewModerationRepository(db)
	jobRepo := repository.NewJobRepository(db)

	prom := middleware.InitMetrics("intelliblog-api")

	eng := engine.New(jobRepo, engine.Options{
		Workers:   cfg.EngineWorkers,
		QueueSize: cfg.EngineQueueSize,
		Retries:   &cfg.EngineRetries,
		Backoff:   time.Duration(cfg.EngineBackoffMS) * time.Millisecond,
	})
	if err := eng.Register(workflows.EventCommentModerate,
		workflows.Moderation(commentRepo, moderationRepo, cls, mail)); err != nil {
		return nil, err
	}
	if err := eng.Register(workflows.EventPostCreated,
		workflows.Notification(postRepo, subRepo, mail, cfg.ClientURL)); err != nil {
		return nil, err
	}

	gate := antispam.NewGate(commentRepo, moderationRepo, antispam.Config{
		SimilarityThreshold: cfg.SpamSimilarityThreshold,
		RecentWindow:        cfg.SpamRecentWindow,
		MinInterval:         time.Duration(cfg.SpamMinIntervalSeconds) * time.Second,
	})

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		userRepo:       userRepo,
		postRepo:       postRepo,
		commentRepo:    commentRepo,
		subRepo:        subRepo,
		moderationRepo: moderationRepo,
		jobRepo:        jobRepo,
		engine:         eng,
		gate:           gate,
		mail:           mail,
	}
	server.postService = service.NewPostService(postRepo, eng)
	server.commentService = service.NewCommentService(commentRepo, postRepo, gate, eng)
	server.subService = service.NewSubscriptionService(subRepo, userRepo)

	return server, nil
}

// StartEngine launches the job workers and re-enqueues the jobs left running
// by an earlier process.
func (s *Server) StartEngine(ctx context.Context) error {
	s.engine.Start()
	return s.engine.Requeue(ctx)
}

// StopEngine drains in-flight jobs, bounded by ctx.
func (s *Server) StopEngine(ctx context.Context) error {
	return s.engine.Stop(ctx)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS must run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)

	// Public post routes
	publicPosts := api.Group("/posts")
	publicPosts.Get("/", s.GetPosts)
	publicPosts.Get("/:id/comments", s.GetComments)
	publicPosts.Get("/:id", s.GetPost)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired)

	// User routes
	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id", s.GetUserProfile)

	// Protected post routes
	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(
		s.redis, 5, 5*time.Minute, "create_post"), s.CreatePost)
	// Specific /:id/:resource routes BEFORE generic /:id route
	posts.Post("/:id/publish", s.PublishPost)
	posts.Post("/:id/comments", s.CreateComment)
	posts.Put("/:id/comments/:commentId", s.UpdateComment)
	posts.Delete("/:id/comments/:commentId", s.DeleteComment)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	// Subscription routes
	subs := protected.Group("/subscriptions")
	subs.Get("/", s.GetMySubscriptions)
	subs.Post("/:authorId", s.Subscribe)
	subs.Delete("/:authorId", s.Unsubscribe)

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/users", s.GetUsers)
	admin.Get("/moderation", s.GetModerationHistory)
	admin.Get("/jobs/:id", s.GetJob)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis degrades caching and per-route limits but is not required.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		admin, err := s.isAdminByUserID(c.Context(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}
