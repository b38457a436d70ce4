// Package api provides the HTTP API for Ridepool.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ridepool/ridepool/internal/api/handler"
	"github.com/ridepool/ridepool/internal/api/middleware"
	"github.com/ridepool/ridepool/internal/auth"
	"github.com/ridepool/ridepool/internal/dispatch"
	"github.com/ridepool/ridepool/internal/notify"
	"github.com/ridepool/ridepool/internal/trip"
	"github.com/ridepool/ridepool/internal/verification"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version      string
	BuildTime    string
	Logger       zerolog.Logger
	ServiceName  string
	Metrics      *middleware.Metrics
	JWTService   *auth.JWTService
	Dispatcher   *dispatch.Orchestrator
	Trips        trip.Repository
	Tokens       notify.TokenStore
	Notifier     notify.Notifier
	Verification *verification.Service

	// Pool and Redis feed the readiness check; either may be nil.
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ridepool-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Pool, cfg.Redis)
	tripHandler := handler.NewTripHandler(handler.TripHandlerConfig{
		Dispatcher:   cfg.Dispatcher,
		Trips:        cfg.Trips,
		Tokens:       cfg.Tokens,
		Notifier:     cfg.Notifier,
		Verification: cfg.Verification,
		Logger:       cfg.Logger,
	})
	deviceHandler := handler.NewDeviceHandler(cfg.Tokens, cfg.Logger)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.JWTService)

	// Rate limit tiers. Dispatch blocks while drivers are searched and
	// offered, so it gets the strict tier.
	expensiveRateLimit := middleware.RateLimitByUser(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByUser(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Trip endpoints (authenticated)
		r.Route("/trips", func(r chi.Router) {
			r.Use(authMiddleware)
			r.With(expensiveRateLimit).Post("/", tripHandler.CreateTrip)
			r.Route("/{tripId}", func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/", tripHandler.GetTrip)
				r.Post("/verification-code", tripHandler.SendVerificationCode)
				r.Post("/start", tripHandler.StartTrip)
			})
		})

		// Device token registration (authenticated)
		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)
			r.Put("/device-token", deviceHandler.RegisterDeviceToken)
		})
	})

	return r
}
