package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/catalog"
	"github.com/affirmstudio/api/internal/client"
	"github.com/affirmstudio/api/internal/entitlement"
	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/internal/queue"
	"github.com/affirmstudio/api/internal/repository"
)

// consumeAttempts bounds how often creation re-selects a purchase after losing a consumption race.
const consumeAttempts = 3

const (
	resultExt         = "mp3"
	resultContentType = "audio/mpeg"
)

// ResultURL is the API path serving a job's audio.
func ResultURL(jobID string) string {
	return "/api/jobs/" + jobID + "/result"
}

// JobService handles affirmation job creation, status and result download
type JobService struct {
	jobs        repository.JobRepository
	projects    repository.ProjectRepository
	entitlement *entitlement.Validator
	catalog     *catalog.Catalog
	queue       queue.Enqueuer
	storage     client.StorageClient
	log         zerolog.Logger
}

func NewJobService(
	repos repository.Repositories,
	validator *entitlement.Validator,
	cat *catalog.Catalog,
	enqueuer queue.Enqueuer,
	storage client.StorageClient,
	log zerolog.Logger,
) *JobService {
	return &JobService{
		jobs:        repos.Jobs,
		projects:    repos.Projects,
		entitlement: validator,
		catalog:     cat,
		queue:       enqueuer,
		storage:     storage,
		log:         log.With().Str("component", "jobs").Logger(),
	}
}

// Create validates the request, consumes the authorizing purchase together with the job insert
// and hands the job id to the workers.
func (s *JobService) Create(ctx context.Context, accountID string, req *model.JobCreateRequest) (*model.JobCreateResponse, error) {
	req.ApplyDefaults(s.entitlement.Rules().DemoDurationSec)

	if req.VoiceMode != model.VoiceModeMine && req.VoiceMode != model.VoiceModeSystem {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedVoiceMode, req.VoiceMode)
	}
	if !s.catalog.HasTrack(req.MusicTrackID) {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownTrack, req.MusicTrackID)
	}
	if req.PresetVoiceID != nil && *req.PresetVoiceID == "" {
		req.PresetVoiceID = nil
	}

	if err := s.checkProject(ctx, accountID, req.ProjectID); err != nil {
		return nil, err
	}

	explicit := req.PurchaseID != nil && *req.PurchaseID != ""
	textLen := utf8.RuneCountInString(req.Text)

	for attempt := 1; attempt <= consumeAttempts; attempt++ {
		purchase, err := s.entitlement.Validate(ctx, accountID, req.DurationSec, req.PurchaseID, textLen)
		if err != nil {
			return nil, err
		}

		job := &model.AudioJob{
			ID:            uuid.New().String(),
			AccountID:     accountID,
			ProjectID:     req.ProjectID,
			Status:        model.JobStatusQueued,
			InputText:     req.Text,
			MusicTrackID:  req.MusicTrackID,
			DurationSec:   req.DurationSec,
			VoiceMode:     req.VoiceMode,
			PresetVoiceID: req.PresetVoiceID,
		}

		err = s.jobs.Create(ctx, job, purchase)
		if errors.Is(err, model.ErrPurchaseConsumed) {
			if explicit {
				return nil, err
			}
			s.log.Debug().Int("attempt", attempt).Msg("purchase taken by a concurrent job, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save job: %w", err)
		}

		if err := s.queue.Enqueue(ctx, job.ID); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID).Msg("job saved but not enqueued")
			return nil, fmt.Errorf("failed to enqueue job: %w", err)
		}

		s.log.Info().
			Str("job_id", job.ID).
			Str("account_id", accountID).
			Int("duration_sec", job.DurationSec).
			Bool("paid", purchase != nil).
			Msg("job queued")

		return &model.JobCreateResponse{
			JobID:     job.ID,
			Status:    job.Status,
			CreatedAt: job.CreatedAt,
		}, nil
	}

	return nil, model.ErrPaymentRequired
}

// Status reports the job state. Unknown ids, and ids owned by another account, yield not_found.
func (s *JobService) Status(ctx context.Context, accountID, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.ownedJob(ctx, accountID, jobID)
	if errors.Is(err, model.ErrNotFound) {
		return &model.JobStatusResponse{JobID: jobID, Status: model.JobStatusNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	resp := &model.JobStatusResponse{
		JobID:  job.ID,
		Status: job.Status,
		Error:  job.Error,
	}
	if job.ResultKey != nil {
		url := ResultURL(job.ID)
		resp.ResultURL = &url
	}
	return resp, nil
}

// Download returns the finished audio. With deleteAfter the blob is removed and the
// result reference cleared once the bytes are in hand.
func (s *JobService) Download(ctx context.Context, accountID, jobID string, deleteAfter bool) (*model.JobResult, error) {
	job, err := s.ownedJob(ctx, accountID, jobID)
	if err != nil {
		return nil, err
	}
	if job.ResultKey == nil {
		return nil, model.ErrResultNotFound
	}
	key := *job.ResultKey

	data, err := s.storage.Download(ctx, key)
	if err != nil {
		if errors.Is(err, client.ErrObjectNotFound) {
			return nil, model.ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to read result: %w", err)
	}

	if deleteAfter {
		s.discardResult(ctx, job.ID, key)
	}

	return &model.JobResult{
		Data:        data,
		ContentType: resultContentType,
		Filename:    model.ResultFilename(job.ID, resultExt),
	}, nil
}

// discardResult deletes the blob first so a failed delete leaves the reference for the retention sweep.
func (s *JobService) discardResult(ctx context.Context, jobID, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("job_id", jobID).Msg("failed to delete downloaded result")
		return
	}
	if _, err := s.jobs.ClearResult(ctx, jobID, key); err != nil {
		s.log.Warn().Err(err).Str("job_id", jobID).Msg("failed to clear result reference")
	}
}

// Authorize reports model.ErrNotFound unless accountID owns jobID.
func (s *JobService) Authorize(ctx context.Context, accountID, jobID string) error {
	_, err := s.ownedJob(ctx, accountID, jobID)
	return err
}

func (s *JobService) ownedJob(ctx context.Context, accountID, jobID string) (*model.AudioJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job.AccountID != accountID {
		return nil, model.ErrNotFound
	}
	return job, nil
}

func (s *JobService) checkProject(ctx context.Context, accountID, projectID string) error {
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrProjectNotFound
		}
		return fmt.Errorf("failed to load project: %w", err)
	}
	if project.AccountID != accountID {
		return model.ErrProjectNotFound
	}
	return nil
}
