package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/orgpulse/orgpulse/internal/config"
	"github.com/orgpulse/orgpulse/internal/logger"
	"github.com/orgpulse/orgpulse/internal/models"
	"github.com/orgpulse/orgpulse/internal/server"
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

	db, err := models.Open(cfg.Database.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer models.Close(db)

	bootstrap, err := config.LoadBootstrap(cfg.BootstrapPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.BootstrapPath).Msg("Failed to load bootstrap config")
	}
	if err := models.SyncBootstrap(db, bootstrap, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to sync bootstrap config")
	}

	// Used to schedule pruning of revoked sessions
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})
	defer asynqClient.Close()

	srv, err := server.New(cfg, db, log, version,
		server.WithEnqueuer(asynqClient),
		server.WithOAuth(bootstrap.Auth.OAuth),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", version).Msg("Starting orgpulse server...")

	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Server failed")
		os.Exit(1)
	}
}
