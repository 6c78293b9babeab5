// The worker relays pending outbox events to the redis broker and sends
// client notifications. It is configured entirely from the environment so it
// can run as a sidecar without the API's config file.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/iosifidis/msc-pims/internal/config"
	"github.com/iosifidis/msc-pims/internal/notification"
	"github.com/iosifidis/msc-pims/internal/repository/postgres"
	"github.com/iosifidis/msc-pims/pkg/logger"
	redisbroker "github.com/iosifidis/msc-pims/pkg/messaging/redis"
	"github.com/iosifidis/msc-pims/pkg/metrics"
	"github.com/iosifidis/msc-pims/pkg/worker"
)

type workerConfig struct {
	DatabaseURL   string        `envconfig:"DATABASE_URL" required:"true"`
	RedisURL      string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	BatchSize     int           `envconfig:"BATCH_SIZE" default:"50"`
	PollInterval  time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	RetryAttempts int           `envconfig:"RETRY_ATTEMPTS" default:"3"`
	RetryDelay    time.Duration `envconfig:"RETRY_DELAY" default:"1s"`
	RetainFor     time.Duration `envconfig:"RETAIN_FOR" default:"168h"`
	MetricsPort   int           `envconfig:"METRICS_PORT" default:"9091"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"noreply@pims.local"`
}

func main() {
	var cfg workerConfig
	if err := envconfig.Process("worker", &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load worker configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	zl := log.Logger
	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.RedisURL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     10,
		MinIdleConns: 2,
	}, &zl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)
	directoryRepo := postgres.NewDirectoryRepository(db)
	notifier := notification.NewService(config.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, directoryRepo, appLogger)

	m := metrics.NewMetrics("pims", "worker")
	processor, err := worker.NewOutboxProcessor(outboxRepo, broker, notifier, worker.OutboxProcessorConfig{
		BatchSize:     cfg.BatchSize,
		PollInterval:  cfg.PollInterval,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		RetainFor:     cfg.RetainFor,
	}, appLogger, m)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid outbox processor configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		log.Info().Str("addr", addr).Msg("serving worker metrics")
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	go processor.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()
}
