package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/affirmstudio/api/internal/catalog"
	"github.com/affirmstudio/api/internal/client"
	"github.com/affirmstudio/api/internal/config"
	"github.com/affirmstudio/api/internal/events"
	"github.com/affirmstudio/api/internal/logger"
	"github.com/affirmstudio/api/internal/repository/postgres"
	"github.com/affirmstudio/api/internal/worker"
)

// The standalone worker shares state with the API through Postgres, redis and the result store.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("", "info")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel).With().Str("process", "worker").Logger()

	if err := checkStandalone(cfg); err != nil {
		log.Fatal().Err(err).Msg("worker cannot start")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, closeDB, err := postgres.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer closeDB()

	storage, closeStorage, err := client.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to open result store")
	}
	defer closeStorage()

	cat, err := catalog.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load catalog")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	srv := worker.NewServer(cfg, worker.Deps{
		Repos:     repos,
		Storage:   storage,
		Publisher: events.NewRedisBus(redisClient, log),
		Catalog:   cat,
	}, log)

	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
}

// checkStandalone rejects the in-memory store, which a separate process cannot share.
func checkStandalone(cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required for a standalone worker")
	}
	return nil
}
