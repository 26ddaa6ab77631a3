package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/client"
	"github.com/affirmstudio/api/internal/events"
	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/internal/queue"
	"github.com/affirmstudio/api/internal/repository"
	"github.com/affirmstudio/api/internal/service"
)

// Progress stages reported on job events.
const (
	StageSpeech = "speech"
	StageMix    = "mix"
	StageUpload = "upload"
)

// Synthesizer turns text into speech, returning nil when no provider succeeded.
type Synthesizer interface {
	SynthesizeWithFallback(ctx context.Context, text, voiceID string) []byte
}

// Renderer mixes speech over a music bed.
type Renderer interface {
	Render(ctx context.Context, voice []byte, trackID string, targetSec int) ([]byte, error)
	Silence(ctx context.Context, seconds int) ([]byte, error)
}

// Options tune the audio worker
type Options struct {
	// MinDurationSec is the shortest track ever rendered.
	MinDurationSec int
	// SilenceSec is the length of the stand-in voice track when synthesis fails.
	SilenceSec     int
	DefaultVoice   string
}

// AudioWorker processes audio jobs
type AudioWorker struct {
	jobs    repository.JobRepository
	tts     Synthesizer
	engine  Renderer
	storage client.StorageClient
	events  events.Publisher
	opts    Options
	log     zerolog.Logger
}

// NewAudioWorker creates a new audio worker
func NewAudioWorker(
	jobs repository.JobRepository,
	tts Synthesizer,
	engine Renderer,
	storage client.StorageClient,
	publisher events.Publisher,
	opts Options,
	log zerolog.Logger,
) *AudioWorker {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if opts.DefaultVoice == "" {
		opts.DefaultVoice = "jane"
	}
	return &AudioWorker{
		jobs:    jobs,
		tts:     tts,
		engine:  engine,
		storage: storage,
		events:  publisher,
		opts:    opts,
		log:     log.With().Str("component", "worker").Logger(),
	}
}

// ProcessTask handles audio task processing
func (w *AudioWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	jobID, err := queue.JobIDFromTask(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return w.Process(ctx, jobID)
}

// Process runs one job to a terminal state. Jobs that are missing or already finished are skipped.
func (w *AudioWorker) Process(ctx context.Context, jobID string) error {
	log := w.log.With().Str("job_id", jobID).Logger()

	job, prev, err := w.jobs.Claim(ctx, jobID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		log.Warn().Msg("job not found, skipping")
		return nil
	case errors.Is(err, model.ErrJobTerminal):
		log.Info().Str("status", string(prev)).Msg("job already finished, skipping")
		return nil
	case err != nil:
		return fmt.Errorf("failed to claim job: %w", err)
	}
	if prev == model.JobStatusProcessing {
		log.Warn().Msg("taking over a job left in processing")
	}

	log.Info().Int("duration_sec", job.DurationSec).Str("track", job.MusicTrackID).Msg("processing job")
	w.publish(ctx, events.StatusEvent(job.ID, model.JobStatusProcessing, StageSpeech))

	key, err := w.render(ctx, job)
	if err != nil {
		w.fail(ctx, job.ID, err)
		return err
	}

	if err := w.jobs.Complete(ctx, job.ID, key); err != nil {
		w.fail(ctx, job.ID, err)
		return fmt.Errorf("failed to complete job: %w", err)
	}

	w.publish(ctx, events.CompleteEvent(job.ID, service.ResultURL(job.ID)))
	log.Info().Str("result_key", key).Msg("job completed")
	return nil
}

func (w *AudioWorker) render(ctx context.Context, job *model.AudioJob) (string, error) {
	speech := w.tts.SynthesizeWithFallback(ctx, job.InputText, w.voiceFor(job))
	if len(speech) == 0 {
		w.log.Warn().Str("job_id", job.ID).Msg("speech unavailable, using silence")
		silence, err := w.engine.Silence(ctx, w.opts.SilenceSec)
		if err != nil {
			return "", fmt.Errorf("failed to generate silence: %w", err)
		}
		speech = silence
	}

	w.publish(ctx, events.StatusEvent(job.ID, model.JobStatusProcessing, StageMix))
	audio, err := w.engine.Render(ctx, speech, job.MusicTrackID, w.targetDuration(job))
	if err != nil {
		return "", err
	}

	w.publish(ctx, events.StatusEvent(job.ID, model.JobStatusProcessing, StageUpload))
	key := model.ResultKeyFor(job.ID, "mp3")
	if err := w.storage.Upload(ctx, key, audio, "audio/mpeg"); err != nil {
		return "", fmt.Errorf("failed to store result: %w", err)
	}
	return key, nil
}

// voiceFor picks the logical voice. Cloning is not available yet, so my_voice uses the default.
func (w *AudioWorker) voiceFor(job *model.AudioJob) string {
	if job.VoiceMode == model.VoiceModeSystem && job.PresetVoiceID != nil && *job.PresetVoiceID != "" {
		return *job.PresetVoiceID
	}
	return w.opts.DefaultVoice
}

func (w *AudioWorker) targetDuration(job *model.AudioJob) int {
	return max(w.opts.MinDurationSec, job.DurationSec)
}

func (w *AudioWorker) fail(ctx context.Context, jobID string, cause error) {
	// the job context may already be cancelled by a timeout
	ctx = context.WithoutCancel(ctx)

	msg := cause.Error()
	if err := w.jobs.Fail(ctx, jobID, msg); err != nil {
		w.log.Error().Err(err).Str("job_id", jobID).Msg("failed to mark job failed")
	}
	w.publish(ctx, events.FailedEvent(jobID, msg))
	w.log.Error().Err(cause).Str("job_id", jobID).Msg("job failed")
}

func (w *AudioWorker) publish(ctx context.Context, event model.JobEvent) {
	if err := w.events.Publish(ctx, event); err != nil {
		w.log.Warn().Err(err).Str("job_id", event.JobID).Msg("failed to publish job event")
	}
}
