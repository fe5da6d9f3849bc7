package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"whatsdrip/internal/config"
	"whatsdrip/internal/dispatcher"
	"whatsdrip/internal/handler"
	"whatsdrip/internal/logger"
	"whatsdrip/internal/queue"
	"whatsdrip/internal/repository"
	"whatsdrip/internal/service"
	"whatsdrip/internal/tageffect"
)

const version = "1.0.0"

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fatalLog := zerolog.New(os.Stderr)
		fatalLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.LogLevel, cfg.IsDevelopment()).With().Str("service", "api").Logger()

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	log.Info().Str("host", cfg.Database.Host).Msg("connected to database")

	conn, err := queue.NewConnection(cfg.GetRabbitMQURL(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer conn.Close()

	publisher, err := queue.NewPublisher(conn, cfg.RabbitMQ.TagEffectQueue)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create publisher")
	}

	tagEffects := repository.NewTagEffectRepository(db)
	timer := tageffect.NewTimer(tagEffects, publisher, cfg.Scheduling.TagEffectLead, log)
	defer timer.Stop()

	enrollment := service.NewEnrollmentService(
		repository.NewTemplateRepository(db),
		dispatcher.NewClient(cfg.Dispatcher.BaseURL, cfg.Dispatcher.APIKey, cfg.Dispatcher.Timeout, log),
		timer,
		service.NewTemplateService(),
		cfg.Scheduling,
		log,
	)

	router := handler.NewRouter(
		handler.NewCampaignHandler(enrollment),
		handler.NewHealthHandler(service.NewHealthService(db, conn, version)),
		log,
	)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("env", cfg.Env).
			Str("timezone", cfg.Scheduling.Location.String()).
			Msg("API server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	// Disarmed effects stay pending in tag_effects; the worker's sweeper picks them up.
	log.Info().Msg("API server stopped")
}
