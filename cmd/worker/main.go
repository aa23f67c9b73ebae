package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/orgpulse/orgpulse/internal/config"
	"github.com/orgpulse/orgpulse/internal/logger"
	"github.com/orgpulse/orgpulse/internal/models"
	"github.com/orgpulse/orgpulse/internal/tasks"
	"github.com/orgpulse/orgpulse/internal/workers"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	log.Info().Str("version", version).Msg("Starting orgpulse Asynq worker")

	db, err := models.Open(cfg.Database.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer models.Close(db)

	// Initialize Asynq client (for the prune scheduler)
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})
	defer asynqClient.Close()

	asynqServer := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr: cfg.Redis.Address,
		},
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				"default": 3,
				"low":     1,
			},
			Logger: &asynqLogger{log: log},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypePruneRevokedSessions, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandlePruneRevokedSessions(ctx, t, db, log)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := workers.StartPruneScheduler(ctx, asynqClient, cfg.Worker.PruneSchedule, log); err != nil {
			log.Error().Err(err).Msg("Prune scheduler stopped")
		}
	}()

	if err := asynqServer.Start(mux); err != nil {
		log.Fatal().Err(err).Msg("Asynq worker server failed")
	}

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")

	asynqServer.Shutdown()

	log.Info().Msg("Worker shutdown complete")
}

// asynqLogger is a wrapper to make zerolog compatible with Asynq's logger interface
type asynqLogger struct {
	log zerolog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.log.Info().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.log.Error().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.log.Fatal().Msg(fmt.Sprint(args...))
}
