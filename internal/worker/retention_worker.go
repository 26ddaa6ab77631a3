package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/queue"
	"github.com/affirmstudio/api/internal/service"
)

// RetentionWorker runs the scheduled retention sweep
type RetentionWorker struct {
	retention *service.RetentionService
	log       zerolog.Logger
}

func NewRetentionWorker(retention *service.RetentionService, log zerolog.Logger) *RetentionWorker {
	return &RetentionWorker{
		retention: retention,
		log:       log.With().Str("component", "retention_worker").Logger(),
	}
}

// ProcessTask handles retention task processing
func (w *RetentionWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := queue.ParseRetentionTask(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	resp, err := w.retention.Sweep(ctx, payload.RetentionDays)
	if err != nil {
		return fmt.Errorf("retention sweep failed: %w", err)
	}

	w.log.Info().
		Int("voice_deleted", resp.VoiceDeleted).
		Int("audio_deleted", resp.AudioDeleted).
		Msg("scheduled retention sweep done")
	return nil
}
