package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/client"
	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/internal/repository"
)

// RetentionService purges voice samples and result audio, by age or on account request.
// Blobs are deleted before their rows, so a failed delete leaves the row for the next pass.
type RetentionService struct {
	jobs    repository.JobRepository
	samples repository.VoiceSampleRepository
	storage client.StorageClient
	now     func() time.Time
	log     zerolog.Logger
}

func NewRetentionService(repos repository.Repositories, storage client.StorageClient, log zerolog.Logger) *RetentionService {
	return &RetentionService{
		jobs:    repos.Jobs,
		samples: repos.VoiceSamples,
		storage: storage,
		now:     time.Now,
		log:     log.With().Str("component", "retention").Logger(),
	}
}

// SetClock replaces the time source.
func (s *RetentionService) SetClock(now func() time.Time) {
	s.now = now
}

// Sweep purges everything older than days (at least one).
func (s *RetentionService) Sweep(ctx context.Context, days int) (*model.RetentionSweepResponse, error) {
	if days < 1 {
		days = 1
	}
	cutoff := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	voice, audio, err := s.Purge(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int("retention_days", days).
		Time("cutoff", cutoff).
		Int("voice_deleted", voice).
		Int("audio_deleted", audio).
		Msg("retention sweep finished")

	return &model.RetentionSweepResponse{
		RetentionDays: days,
		VoiceDeleted:  voice,
		AudioDeleted:  audio,
	}, nil
}

// Purge deletes voice samples and completed-job results created before cutoff. Swept jobs keep
// their completed status. Running it again with the same cutoff deletes nothing.
func (s *RetentionService) Purge(ctx context.Context, cutoff time.Time) (voiceDeleted, audioDeleted int, err error) {
	samples, err := s.samples.ListBefore(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list voice samples: %w", err)
	}
	voiceDeleted = s.deleteSamples(ctx, samples)

	jobs, err := s.jobs.ListResultsBefore(ctx, cutoff)
	if err != nil {
		return voiceDeleted, 0, fmt.Errorf("failed to list results: %w", err)
	}
	audioDeleted = s.deleteResults(ctx, jobs)

	return voiceDeleted, audioDeleted, nil
}

// DeleteVoice removes every voice sample of the account.
func (s *RetentionService) DeleteVoice(ctx context.Context, accountID string) (*model.DeletedResponse, error) {
	samples, err := s.samples.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list voice samples: %w", err)
	}
	return &model.DeletedResponse{Deleted: s.deleteSamples(ctx, samples)}, nil
}

// DeleteAudio removes every stored result of the account.
func (s *RetentionService) DeleteAudio(ctx context.Context, accountID string) (*model.DeletedResponse, error) {
	jobs, err := s.jobs.ListResultsByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return &model.DeletedResponse{Deleted: s.deleteResults(ctx, jobs)}, nil
}

func (s *RetentionService) deleteSamples(ctx context.Context, samples []*model.VoiceSample) int {
	deleted := 0
	for _, sample := range samples {
		if sample.Key != "" {
			if err := s.storage.Delete(ctx, sample.Key); err != nil {
				s.log.Warn().Err(err).Str("sample_id", sample.ID).Msg("failed to delete voice sample blob")
				continue
			}
		}
		ok, err := s.samples.Delete(ctx, sample.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("sample_id", sample.ID).Msg("failed to delete voice sample")
			continue
		}
		if ok {
			deleted++
		}
	}
	return deleted
}

func (s *RetentionService) deleteResults(ctx context.Context, jobs []*model.AudioJob) int {
	deleted := 0
	for _, job := range jobs {
		if job.ResultKey == nil {
			continue
		}
		key := *job.ResultKey
		if err := s.storage.Delete(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to delete result blob")
			continue
		}
		ok, err := s.jobs.ClearResult(ctx, job.ID, key)
		if err != nil {
			s.log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to clear result reference")
			continue
		}
		if ok {
			deleted++
		}
	}
	return deleted
}
