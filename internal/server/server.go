// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "postapp/docs" // swagger docs
	"postapp/internal/auth"
	"postapp/internal/bootstrap"
	"postapp/internal/cache"
	"postapp/internal/config"
	"postapp/internal/database"
	"postapp/internal/featureflags"
	"postapp/internal/middleware"
	"postapp/internal/models"
	"postapp/internal/notifications"
	"postapp/internal/repository"
	"postapp/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
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
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	tokens       *auth.Tokens
	guard        *middleware.AuthGuard
	limiter      *middleware.RateLimiter
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager

	postService    *service.PostService
	commentService *service.CommentService
	userService    *service.UserService
}

// NewServer connects to the database and Redis, then builds the server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedDemoData: cfg.SeedDemoData})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil: rate limiting and caching then fail open and
// realtime events are delivered by the local hub only.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires a config and a database")
	}

	timeout := cfg.QueryTimeout()
	userRepo := repository.NewUserRepository(db, timeout)
	postRepo := repository.NewPostRepository(db, timeout)
	commentRepo := repository.NewCommentRepository(db, timeout)

	tokens := auth.FromConfig(cfg)
	flags := featureflags.NewManager(cfg.FeatureFlags)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("postapp-api"),
		tokens:         tokens,
		guard:          middleware.NewAuthGuard(tokens),
		limiter:        middleware.NewRateLimiter(redisClient, cfg.RateLimitEnabled),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		featureFlags:   flags,
	}

	server.userService = service.NewUserService(userRepo, tokens, cache.New(redisClient, "user_profile"), flags)
	server.postService = service.NewPostService(postRepo, server.userService)
	server.commentService = service.NewCommentService(commentRepo)

	return server, nil
}

// App returns the Fiber application, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	bodyLimit := s.config.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 4
	}

	app := fiber.New(fiber.Config{
		AppName:      "Post App API",
		BodyLimit:    bodyLimit * 1024 * 1024,
		ErrorHandler: s.handleError,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	app.Use(s.NotFound)

	s.app = app
	return app
}

// handleError converts anything a handler returned into the JSON envelope.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	if models.StatusFor(err) >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}
	return models.RespondWithError(c, err, s.config.IsDevelopment())
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Propagates request and user IDs into the request context for slog.
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// In-process ceiling per IP; the Redis limits below are per route.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.RateLimitEnabled
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c,
				fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later."), false)
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/health", s.HealthCheck)
	api.Get("/swagger/*", swagger.HandlerDefault)
	api.Get("/feature-flags", s.guard.OptionalAuth(), s.GetFeatureFlags)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", s.limiter.Limit("register", 5, 10*time.Minute), s.Register)
	authRoutes.Post("/login", s.limiter.Limit("login", 10, 5*time.Minute), s.Login)
	authRoutes.Get("/me", s.guard.RequireAuth(), s.GetMe)

	users := api.Group("/users")
	// Static segment before the :username catch.
	users.Put("/profile", s.guard.RequireAuth(), s.UpdateProfile)
	users.Get("/:username", s.GetUserProfile)

	posts := api.Group("/posts")
	posts.Get("/", s.guard.OptionalAuth(), s.ListPosts)
	posts.Post("/", s.guard.RequireAuth(), s.limiter.Limit("create_post", 10, time.Minute), s.CreatePost)
	posts.Get("/:id/comments", s.guard.OptionalAuth(), s.ListComments)
	posts.Post("/:id/comments", s.guard.RequireAuth(), s.limiter.Limit("create_comment", 20, time.Minute), s.CreateComment)
	posts.Delete("/:id/comments/:commentId", s.guard.RequireAuth(), s.DeleteComment)
	posts.Get("/:id", s.guard.OptionalAuth(), s.GetPost)
	posts.Put("/:id", s.guard.RequireAuth(), s.UpdatePost)
	posts.Delete("/:id", s.guard.RequireAuth(), s.DeletePost)

	api.Get("/ws", s.guard.OptionalAuthWithQuery(), s.requireUpgrade, s.FeedWebSocketHandler())
}

// NotFound answers every unmatched route.
func (s *Server) NotFound(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.NewError(fiber.StatusNotFound, "Route not found"), false)
}

// HealthCheck handles GET /api/health
// @Summary Service health
// @Tags health
// @Produce json
// @Success 200 {object} object{success=bool,message=string,status=string}
// @Router /health [get]
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Post App Backend is running",
		"status":  "OK",
		"env":     s.config.Env,
	})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"status":  "up",
		"time":    time.Now().UTC(),
	})
}

// ReadinessCheck reports 503 when the database is unreachable. Redis is
// optional, so a Redis failure only degrades the report.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
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
	overall := "healthy"
	switch {
	case dbStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	case redisStatus == "unhealthy":
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"success": status == fiber.StatusOK,
		"status":  overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if s.notifier.Active() {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring", "hub", s.hub.Name(), "error", err)
			}
		}()
	}

	middleware.Logger.Info("server starting", "port", s.config.Port, "env", s.config.Env,
		"feature_flags", s.featureFlags.String())
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("%s hub: %w", s.hub.Name(), err))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("database: %w", cerr))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			errs = append(errs, fmt.Errorf("redis: %w", rerr))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
