// Package server maps the lending operations onto a JSON HTTP API.
package server

import (
	"context"
	"time"

	"bookshare/internal/cache"
	"bookshare/internal/config"
	"bookshare/internal/middleware"
	"bookshare/internal/models"
	"bookshare/internal/observability"
	"bookshare/internal/repository"
	"bookshare/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server holds all dependencies and provides handlers
type Server struct {
	config    *config.Config
	db        *gorm.DB
	redis     *redis.Client
	app       *fiber.App
	listings  *service.ListingService
	admin     *service.AdminService
	users     *service.UserService
	dashboard *service.DashboardService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching, counters and rate limiting then degrade
// to their in-process fallbacks.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	store := repository.NewStore(db)
	counters := cache.NewCounters(redisClient)

	middleware.InitMiddleware(cfg)

	return &Server{
		config:    cfg,
		db:        db,
		redis:     redisClient,
		listings:  service.NewListingService(store, counters),
		admin:     service.NewAdminService(store, redisClient),
		users:     service.NewUserService(store, service.BcryptHasher{}, cfg.AdminCode),
		dashboard: service.NewDashboardService(store, counters),
	}
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:     observability.ServiceName,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled request error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.InitMetrics(app, observability.ServiceName))
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
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
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, middleware.RegisterPolicy), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, middleware.LoginPolicy), s.Login)

	api.Get("/genres", s.ListGenres)

	protected := api.Group("", middleware.AuthRequired)

	protected.Get("/dashboard", s.GetDashboard)

	me := protected.Group("/me")
	me.Get("/", s.GetMyProfile)
	me.Put("/", s.UpdateMyProfile)
	me.Get("/loans", s.GetMyLoans)
	me.Get("/lent", s.GetLoansOnMyListings)

	listings := protected.Group("/listings")
	listings.Get("/", s.SearchListings)
	listings.Post("/", s.CreateListing)
	// Specific /:id/:action routes before the generic /:id routes
	listings.Post("/:id/reserve", middleware.RateLimit(s.redis, middleware.ReservePolicy), s.ReserveListing)
	listings.Post("/:id/deletion", s.ToggleListingDeletion)
	listings.Get("/:id", s.GetListing)
	listings.Patch("/:id", s.EditListing)

	loans := protected.Group("/loans")
	loans.Post("/:id/return", s.ReturnLoan)
	loans.Get("/:id", s.GetLoan)

	admin := protected.Group("/admin", middleware.AdminRequired(s.admin.IsAdmin))
	admin.Get("/users", s.ListUsers)
	admin.Put("/users/:id/role", s.ChangeRole)
	admin.Get("/loans", s.SearchAllLoans)
	admin.Get("/genres", s.ListAllGenres)
	admin.Post("/genres", s.CreateGenre)
	admin.Put("/genres/:id", s.EditGenre)
	admin.Delete("/records/:kind/:id", s.DeleteRecord)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and, when configured, Redis. Redis is
// optional for this service, so its absence is reported but not fatal.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
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
	} else if redisStatus == "unhealthy" {
		overall = "degraded"
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

// Start serves on the configured port until Shutdown is called.
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("server starting", "port", s.config.Port, "env", s.config.Env)
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests and closes the database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
