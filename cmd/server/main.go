package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/audio"
	"github.com/affirmstudio/api/internal/auth"
	"github.com/affirmstudio/api/internal/catalog"
	"github.com/affirmstudio/api/internal/client"
	"github.com/affirmstudio/api/internal/config"
	"github.com/affirmstudio/api/internal/entitlement"
	"github.com/affirmstudio/api/internal/events"
	"github.com/affirmstudio/api/internal/handler"
	"github.com/affirmstudio/api/internal/logger"
	"github.com/affirmstudio/api/internal/middleware"
	"github.com/affirmstudio/api/internal/queue"
	"github.com/affirmstudio/api/internal/repository"
	"github.com/affirmstudio/api/internal/repository/memory"
	"github.com/affirmstudio/api/internal/repository/postgres"
	"github.com/affirmstudio/api/internal/service"
	"github.com/affirmstudio/api/internal/tts"
	ws "github.com/affirmstudio/api/internal/websocket"
	"github.com/affirmstudio/api/internal/worker"
	"github.com/affirmstudio/api/pkg/response"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("", "info")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not available")
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	repos, dbName, closeDB, err := openRepositories(ctx, cfg, log)
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

	validate := validator.New()
	bus := events.NewRedisBus(redisClient, log)
	rules := entitlement.NewValidator(entitlement.Rules{
		MaxTextChars:    cfg.Billing.MaxTextChars,
		DemoDurationSec: cfg.Billing.DemoDuration,
		PaidDurations:   cfg.Billing.PaidDurations,
	}, repos.Purchases)

	// Zitadel JWKS verifier is optional; legacy HMAC tokens remain accepted when JWT_SECRET is set
	var tokenVerifier auth.TokenVerifier
	if cfg.Zitadel.Issuer != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(ctx, &cfg.Zitadel)
		if err != nil {
			log.Warn().Err(err).Msg("JWKS verifier not initialized")
		} else {
			defer jwksVerifier.Close()
			tokenVerifier = jwksVerifier
		}
	}

	var authenticate fiber.Handler
	if cfg.Gateway.Enabled {
		log.Info().Msg("gateway mode enabled, using header-based auth")
		authenticate = middleware.GatewayAuthMiddleware()
	} else {
		authenticate = middleware.NewAuthMiddleware(tokenVerifier, cfg.JWT.Secret).Authenticate()
	}

	retentionService := service.NewRetentionService(repos, storage, log)
	previews := service.NewPreviewService(
		tts.NewChainFromConfig(&cfg.TTS, cfg.Audio.FFmpegPath, cat, log),
		audio.NewEngineFromConfig(cfg.Audio, tts.ExecRunner{}, cat, storage, log),
		log,
	)
	handlers := handler.Handlers{
		Health: handler.NewHealthHandler(handler.Components{
			Database: dbName,
			Storage:  storage.Backend(),
			Queue:    true,
			Events:   true,
			Auth:     tokenVerifier != nil || cfg.JWT.Secret != "" || cfg.Gateway.Enabled,
		}),
		Auth: handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret),
		Jobs: handler.NewJobHandler(
			service.NewJobService(repos, rules, cat, queue.NewAsynqQueue(asynqClient), storage, log),
			validate,
		),
		Billing:  handler.NewBillingHandler(service.NewBillingService(repos.Purchases, rules, cfg.Billing, log), validate),
		Projects: handler.NewProjectHandler(service.NewProjectService(repos.Projects), validate),
		Voice:    handler.NewVoiceHandler(service.NewVoiceService(repos.VoiceSamples, storage, cfg.Voice, log)),
		Privacy:  handler.NewPrivacyHandler(retentionService, cfg.Retention.Days),
		Catalog:  handler.NewCatalogHandler(cat, previews),
	}

	hub := ws.NewHub(log)
	go hub.Run(ctx)
	go func() {
		if err := bus.Subscribe(ctx, hub.Broadcast); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("job event subscription stopped")
		}
	}()

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(cfg.Voice.MaxBytes) + 1024*1024,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	handler.Register(app, handlers, authenticate, middleware.NewRateLimiter(redisClient, log), cfg.RateLimit, hub)

	if cfg.Worker.Embedded {
		srv := worker.NewServer(cfg, worker.Deps{
			Repos:     repos,
			Storage:   storage,
			Publisher: bus,
			Catalog:   cat,
		}, log)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Error().Err(err).Msg("embedded worker stopped")
			}
		}()
	} else if dbName == "memory" {
		log.Warn().Msg("in-memory store without an embedded worker: jobs will never be processed")
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info().Str("addr", addr).Str("database", dbName).Str("storage", storage.Backend()).Msg("server starting")
	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}

// openRepositories uses Postgres when DATABASE_URL is set and the in-memory store otherwise.
func openRepositories(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.Repositories, string, func(), error) {
	if cfg.Database.URL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store")
		return memory.NewStore().Repositories(), "memory", func() {}, nil
	}
	repos, closeDB, err := postgres.Open(ctx, cfg.Database, log)
	if err != nil {
		return repository.Repositories{}, "", nil, err
	}
	return repos, "postgres", closeDB, nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	errCode := response.CodeServiceError
	switch code {
	case fiber.StatusNotFound:
		errCode = response.CodeNotFound
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
		errCode = response.CodeValidationError
	}
	return response.Error(c, code, errCode, message, nil)
}
