package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/audio"
	"github.com/affirmstudio/api/internal/catalog"
	"github.com/affirmstudio/api/internal/client"
	"github.com/affirmstudio/api/internal/config"
	"github.com/affirmstudio/api/internal/events"
	"github.com/affirmstudio/api/internal/logger"
	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/internal/queue"
	"github.com/affirmstudio/api/internal/repository"
	"github.com/affirmstudio/api/internal/service"
	"github.com/affirmstudio/api/internal/tts"
)

// Deps are the collaborators a worker process shares with the API.
type Deps struct {
	Repos     repository.Repositories
	Storage   client.StorageClient
	Publisher events.Publisher
	Catalog   *catalog.Catalog
}

// NewMux routes task types to their handlers.
func NewMux(audioWorker *AudioWorker, retentionWorker *RetentionWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(model.TaskTypeAudio, audioWorker.ProcessTask)
	mux.HandleFunc(model.TaskTypeRetention, retentionWorker.ProcessTask)
	return mux
}

// NewAudioWorkerFromConfig wires the TTS chain and the mixing engine described by cfg.
func NewAudioWorkerFromConfig(cfg *config.Config, deps Deps, log zerolog.Logger) *AudioWorker {
	runner := tts.ExecRunner{}
	chain := tts.NewChainFromConfig(&cfg.TTS, cfg.Audio.FFmpegPath, deps.Catalog, log)

	engine := audio.NewEngineFromConfig(cfg.Audio, runner, deps.Catalog, deps.Storage, log)

	return NewAudioWorker(deps.Repos.Jobs, chain, engine, deps.Storage, deps.Publisher, Options{
		MinDurationSec: cfg.Audio.MinDurationSec,
		SilenceSec:     cfg.Audio.SilenceSeconds,
		DefaultVoice:   deps.Catalog.DefaultVoice(),
	}, log)
}

// Server runs the asynq task server together with the retention scheduler.
type Server struct {
	srv       *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	cfg       *config.Config
	log       zerolog.Logger
}

// NewServer builds the task server for cfg.
func NewServer(cfg *config.Config, deps Deps, log zerolog.Logger) *Server {
	log = log.With().Str("component", "asynq").Logger()
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqLog := logger.NewAsynqLogger(log)
	level := logger.AsynqLogLevel(cfg.Server.LogLevel)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			model.QueueAudio:       6,
			model.QueueMaintenance: 1,
		},
		Logger:   asynqLog,
		LogLevel: level,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   asynqLog,
		LogLevel: level,
	})

	retention := service.NewRetentionService(deps.Repos, deps.Storage, log)
	mux := NewMux(
		NewAudioWorkerFromConfig(cfg, deps, log),
		NewRetentionWorker(retention, log),
	)

	return &Server{
		srv:       srv,
		scheduler: scheduler,
		mux:       mux,
		cfg:       cfg,
		log:       log,
	}
}

// Run processes tasks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	entryID, err := queue.RegisterRetention(s.scheduler, s.cfg.Retention.Schedule, s.cfg.Retention.Days)
	if err != nil {
		return fmt.Errorf("failed to register retention sweep: %w", err)
	}
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer s.scheduler.Shutdown()

	s.log.Info().
		Str("retention_entry", entryID).
		Str("schedule", s.cfg.Retention.Schedule).
		Int("concurrency", s.cfg.Worker.Concurrency).
		Msg("worker started")

	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("failed to start task server: %w", err)
	}

	<-ctx.Done()
	s.log.Info().Msg("worker shutting down")
	s.srv.Shutdown()
	return nil
}
