package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iosifidis/msc-pims/internal/config"
	"github.com/iosifidis/msc-pims/internal/handler"
	appointmentHandler "github.com/iosifidis/msc-pims/internal/handler/appointment"
	billingHandler "github.com/iosifidis/msc-pims/internal/handler/billing"
	clinicalHandler "github.com/iosifidis/msc-pims/internal/handler/clinical"
	"github.com/iosifidis/msc-pims/internal/middleware"
	"github.com/iosifidis/msc-pims/internal/repository/postgres"
	"github.com/iosifidis/msc-pims/internal/router"
	appointmentService "github.com/iosifidis/msc-pims/internal/service/appointment"
	billingService "github.com/iosifidis/msc-pims/internal/service/billing"
	clinicalService "github.com/iosifidis/msc-pims/internal/service/clinical"
	directoryService "github.com/iosifidis/msc-pims/internal/service/directory"
	"github.com/iosifidis/msc-pims/pkg/auth"
	"github.com/iosifidis/msc-pims/pkg/logger"
	"github.com/iosifidis/msc-pims/pkg/metrics"
	"github.com/iosifidis/msc-pims/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	zerolog.SetGlobalLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if err := validator.Register(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validations")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	appointmentRepo := postgres.NewAppointmentRepository(db)
	recordRepo := postgres.NewMedicalRecordRepository(db)
	invoiceRepo := postgres.NewInvoiceRepository(db)
	directoryRepo := postgres.NewDirectoryRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	txRunner := postgres.NewBaseRepository(db)

	// Services
	directorySvc := directoryService.NewService(directoryRepo)
	appointmentSvc := appointmentService.NewService(
		appointmentRepo, recordRepo, invoiceRepo, outboxRepo, directorySvc, &txRunner)
	billingSvc := billingService.NewService(invoiceRepo, outboxRepo)
	clinicalSvc := clinicalService.NewService(
		appointmentRepo, recordRepo, billingSvc, outboxRepo, &txRunner)

	// HTTP layer
	m := metrics.NewMetrics("pims", "api")
	authMiddleware := middleware.NewAuthMiddleware(auth.NewVerifier(cfg.JWT.Secret))
	r := router.NewRouter(
		cfg.Server,
		authMiddleware,
		appointmentHandler.NewHandler(appointmentSvc),
		clinicalHandler.NewHandler(clinicalSvc),
		billingHandler.NewHandler(billingSvc),
		handler.NewHandler(db),
		m,
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
