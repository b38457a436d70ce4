// Package main provides the entrypoint for the Ridepool API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ridepool/ridepool/internal/api"
	"github.com/ridepool/ridepool/internal/api/middleware"
	"github.com/ridepool/ridepool/internal/auth"
	"github.com/ridepool/ridepool/internal/database"
	"github.com/ridepool/ridepool/internal/dispatch"
	"github.com/ridepool/ridepool/internal/driver"
	"github.com/ridepool/ridepool/internal/notify"
	"github.com/ridepool/ridepool/internal/offer"
	"github.com/ridepool/ridepool/internal/telemetry"
	"github.com/ridepool/ridepool/internal/trip"
	"github.com/ridepool/ridepool/internal/verification"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "ridepool-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Ridepool API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Connect to Redis (geo index, offer store, device tokens)
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", redisAddr).Msg("failed to connect to redis")
	}
	log.Info().Str("addr", redisAddr).Msg("redis connected")

	// Initialize JWT service (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
		Issuer:     "https://api.ridepool.app",
		Audience:   "ridepool-api",
	})

	// Initialize the push notifier. Without Firebase credentials dispatch
	// still works; drivers just get no push.
	var notifier notify.Notifier
	firebaseProject := os.Getenv("FIREBASE_PROJECT_ID")
	if firebaseProject != "" {
		fcm, err := notify.NewFCMNotifier(ctx, firebaseProject, os.Getenv("FIREBASE_CREDENTIALS_FILE"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize FCM")
		}
		notifier = notify.NewResilient(notify.ResilientConfig{
			Inner:  fcm,
			Logger: log,
		})
		log.Info().Str("project", firebaseProject).Msg("FCM notifier initialized")
	} else {
		notifier = notify.NopNotifier{}
		log.Warn().Msg("FIREBASE_PROJECT_ID not set - push notifications disabled")
	}

	// Dispatch stack
	trips := trip.NewPostgresRepository(pool)
	drivers := driver.NewPostgresRepository(pool)
	index := driver.NewRedisGeoIndex(redisClient)
	offers := offer.NewRedisStore(redisClient)
	tokens := notify.NewRedisTokenStore(redisClient)

	negotiator := offer.NewNegotiator(offer.NegotiatorConfig{
		Drivers:  drivers,
		Offers:   offers,
		Notifier: notifier,
		Logger:   log,
	})

	dispatchMetrics, err := dispatch.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dispatch metrics")
	}

	dispatcher := dispatch.NewOrchestrator(dispatch.OrchestratorConfig{
		Trips:      trips,
		Drivers:    drivers,
		Index:      index,
		Negotiator: negotiator,
		Logger:     log,
		Metrics:    dispatchMetrics,
	})
	log.Info().Msg("dispatch orchestrator initialized")

	verificationSecret := os.Getenv("VERIFICATION_SECRET")
	if verificationSecret == "" {
		verificationSecret = jwtSigningKey
	}
	verificationService := verification.NewService(verificationSecret)

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:      Version,
		BuildTime:    BuildTime,
		Logger:       log,
		ServiceName:  serviceName,
		Metrics:      metrics,
		JWTService:   jwtService,
		Dispatcher:   dispatcher,
		Trips:        trips,
		Tokens:       tokens,
		Notifier:     notifier,
		Verification: verificationService,
		Pool:         pool,
		Redis:        redisClient,
	})

	// Create HTTP server
	// Dispatch holds the request open through driver offer windows, so the
	// write timeout is generous.
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
