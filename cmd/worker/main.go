package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"whatsdrip/internal/config"
	"whatsdrip/internal/logger"
	"whatsdrip/internal/queue"
	"whatsdrip/internal/repository"
	"whatsdrip/internal/tagapi"
	"whatsdrip/internal/tageffect"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fatalLog := zerolog.New(os.Stderr)
		fatalLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.LogLevel, cfg.IsDevelopment()).With().Str("service", "worker").Logger()

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	log.Info().Msg("connected to database")

	conn, err := queue.NewConnection(cfg.GetRabbitMQURL(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer conn.Close()
	log.Info().Msg("connected to RabbitMQ")

	tagEffects := repository.NewTagEffectRepository(db)
	queueName := cfg.RabbitMQ.TagEffectQueue

	applier := tageffect.NewApplier(
		tagEffects,
		tagapi.NewClient(cfg.TagAPI.BaseURL, cfg.TagAPI.Timeout, log),
		cfg.Scheduling.MaxRetries,
		cfg.Scheduling.RetryBackoff,
		log,
	)

	consumer, err := queue.NewConsumer(conn, queueName, applier.Handle, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create consumer")
	}
	if err := consumer.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start consumer")
	}
	log.Info().Str("queue", queueName).Msg("worker started")

	publisher, err := queue.NewPublisher(conn, queueName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create publisher")
	}

	sweeper := tageffect.NewSweeper(
		tagEffects,
		publisher,
		cfg.Scheduling.SweepBatch,
		cfg.Scheduling.StaleQueuedAfter,
		cfg.Scheduling.Location,
		log,
	)
	if err := sweeper.Start(cfg.Scheduling.SweepSchedule); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Scheduling.SweepSchedule).Msg("failed to start sweeper")
	}

	// Pick up anything left behind before the first tick
	if n, err := sweeper.Sweep(context.Background()); err != nil {
		log.Warn().Err(err).Msg("startup sweep failed")
	} else if n > 0 {
		log.Info().Int("published", n).Msg("startup sweep republished pending tag effects")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down gracefully")

	sweeper.Stop()
	if err := consumer.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping consumer")
	}

	log.Info().Msg("worker stopped")
}
