package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/dispensing-api/config"
	authHandler "github.com/jwalitptl/dispensing-api/internal/handler/auth"
	captureHandler "github.com/jwalitptl/dispensing-api/internal/handler/capture"
	dashboardHandler "github.com/jwalitptl/dispensing-api/internal/handler/dashboard"
	documentHandler "github.com/jwalitptl/dispensing-api/internal/handler/document"
	"github.com/jwalitptl/dispensing-api/internal/handler/health"
	medicationHandler "github.com/jwalitptl/dispensing-api/internal/handler/medication"
	promHandler "github.com/jwalitptl/dispensing-api/internal/handler/prometheus"
	userHandler "github.com/jwalitptl/dispensing-api/internal/handler/user"
	"github.com/jwalitptl/dispensing-api/internal/lookup"
	"github.com/jwalitptl/dispensing-api/internal/middleware"
	"github.com/jwalitptl/dispensing-api/internal/repository/postgres"
	"github.com/jwalitptl/dispensing-api/internal/router"
	authService "github.com/jwalitptl/dispensing-api/internal/service/auth"
	captureService "github.com/jwalitptl/dispensing-api/internal/service/capture"
	dashboardService "github.com/jwalitptl/dispensing-api/internal/service/dashboard"
	documentService "github.com/jwalitptl/dispensing-api/internal/service/document"
	medicationService "github.com/jwalitptl/dispensing-api/internal/service/medication"
	userService "github.com/jwalitptl/dispensing-api/internal/service/user"
	"github.com/jwalitptl/dispensing-api/internal/session"
	"github.com/jwalitptl/dispensing-api/internal/worker"
	"github.com/jwalitptl/dispensing-api/pkg/logger"
	"github.com/jwalitptl/dispensing-api/pkg/messaging/redis"
	"github.com/jwalitptl/dispensing-api/pkg/metrics"
	"github.com/jwalitptl/dispensing-api/pkg/security"
	"github.com/jwalitptl/dispensing-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
	})
	log.Logger = *appLogger.Zerolog()
	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Log.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db, false); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer("medcol", "api", registry)

	// Initialize repositories
	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	documentRepo := postgres.NewDocumentRepository(base)
	medicationRepo := postgres.NewMedicationRepository(base)

	encryptor, err := security.NewEncryptorFromHex(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid document encryption key")
	}
	if cfg.Security.EncryptionKey == "" {
		log.Warn().Msg("document encryption disabled, files are stored in clear")
	}
	hasher := security.NewBcryptHasher(cfg.Session.BcryptCost)

	// Initialize services
	authSvc := authService.NewService(userRepo, hasher, m, appLogger)
	userSvc := userService.NewService(userRepo, hasher, validator.New(), appLogger)
	documentSvc := documentService.NewService(documentRepo, encryptor, cfg.Capture.MaxUploadBytes, appLogger)
	medicationSvc := medicationService.NewService(medicationRepo, appLogger)
	dashboardSvc := dashboardService.NewService(documentSvc, medicationSvc)

	checks := map[string]health.Check{
		"database": db.PingContext,
	}

	store, redisClient, err := newSessionStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session store")
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	tokens, err := session.NewTokens(cfg.Session.Secret)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid session secret")
	}
	sessions := session.NewManager(store, tokens, authSvc, cfg.Session.TTL, appLogger)

	captureSvc := captureService.NewService(newLookupClient(cfg), documentSvc, captureService.Config{
		Device:         cfg.Capture.Device,
		MaxUploadBytes: cfg.Capture.MaxUploadBytes,
		MaxFrameBytes:  cfg.Capture.MaxFrameBytes,
	}, m, appLogger)
	defer captureSvc.CloseAll()

	// Initialize middleware and handlers
	authMiddleware := middleware.NewAuthMiddleware(sessions, cfg.Session.CookieName)

	var metricsH *promHandler.Handler
	if cfg.Monitoring.PrometheusEnabled {
		metricsH = promHandler.New(registry)
	}

	r := router.NewRouter(
		authMiddleware,
		authHandler.NewHandler(sessions, authMiddleware, captureSvc, authHandler.CookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.CookieSecure,
		}),
		health.NewHandler(checks),
		metricsH,
		[]router.ProtectedHandler{
			dashboardHandler.NewHandler(dashboardSvc),
			captureHandler.NewHandler(captureSvc, cfg.Capture.MaxUploadBytes, cfg.Capture.MaxFrameBytes),
			documentHandler.NewHandler(documentSvc, cfg.Capture.MaxUploadBytes),
			medicationHandler.NewHandler(medicationSvc),
			userHandler.NewHandler(userSvc),
		},
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			CORSConfig:       middleware.DefaultCORSConfig(cfg.Security.AllowedOrigins, cfg.Security.AllowedMethods, cfg.Security.AllowedHeaders),
			RequestTimeout:   cfg.Server.RequestTimeout,
			MaxBodyBytes:     cfg.Capture.MaxUploadBytes + 1<<20,
			MetricsPath:      cfg.Monitoring.MetricsPath,
			Debug:            logger.ParseLevel(cfg.Log.Level) == logger.DebugLevel,
		},
	)
	r.Setup()

	reaper := worker.NewFlowReaper(captureSvc, cfg.Capture.IdleTimeout, cfg.Capture.ReapInterval, appLogger)
	go reaper.Start(ctx)

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

func newSessionStore(cfg *config.Config) (session.Store, *goredis.Client, error) {
	if cfg.Session.Store == "memory" {
		return session.NewMemoryStore(time.Minute), nil, nil
	}
	client, err := redis.NewClient(cfg.Redis.ToBrokerConfig())
	if err != nil {
		return nil, nil, err
	}
	return session.NewRedisStore(client), client, nil
}

func newLookupClient(cfg *config.Config) lookup.Client {
	var client lookup.Client
	if cfg.Lookup.Mode == "http" {
		client = lookup.NewHTTPClient(cfg.Lookup.BaseURL, cfg.Lookup.APIKey, cfg.Lookup.Timeout)
	} else {
		client = lookup.NewSeedDirectory()
	}
	if cfg.Lookup.CacheTTL > 0 {
		client = lookup.NewCachedClient(client, cfg.Lookup.CacheTTL)
	}
	return client
}
