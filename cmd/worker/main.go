package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/dispensing-api/config"
	"github.com/jwalitptl/dispensing-api/internal/repository/postgres"
	"github.com/jwalitptl/dispensing-api/pkg/logger"
	"github.com/jwalitptl/dispensing-api/pkg/messaging"
	"github.com/jwalitptl/dispensing-api/pkg/messaging/rabbitmq"
	"github.com/jwalitptl/dispensing-api/pkg/messaging/redis"
	"github.com/jwalitptl/dispensing-api/pkg/metrics"
	"github.com/jwalitptl/dispensing-api/pkg/worker"
)

const healthAddr = ":8081"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
	})
	log.Logger = *appLogger.Zerolog()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	broker, err := newBroker(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("kind", cfg.Broker.Kind).Msg("Failed to create broker")
	}
	defer broker.Close()

	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer("medcol", "outbox_processor", registry)

	baseRepo := postgres.NewBaseRepository(db)
	outboxRepo := postgres.NewOutboxRepository(baseRepo)

	processor := worker.NewOutboxProcessor(outboxRepo, broker, cfg.ToWorkerConfig(), appLogger, m)
	retention := worker.NewOutboxRetentionWorker(outboxRepo, cfg.Outbox.RetentionDays, cfg.Outbox.CleanupInterval, appLogger)

	srv := setupHealthCheck(db.PingContext, registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		retention.Start(ctx)
	}()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Health check server forced to shutdown")
	}
}

func newBroker(cfg *config.Config) (messaging.Broker, error) {
	if cfg.Broker.Kind == "rabbitmq" {
		return rabbitmq.NewRabbitMQBroker(cfg.Broker.ToRabbitMQConfig(), &log.Logger)
	}
	return redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &log.Logger)
}

func setupHealthCheck(ping func(context.Context) error, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: healthAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Health check server failed")
		}
	}()
	return srv
}
