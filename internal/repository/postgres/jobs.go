package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/affirmstudio/api/internal/model"
)

const jobColumns = `id, account_id, project_id, status, input_text, music_track_id, duration_sec,
voice_mode, preset_voice_id, purchase_id, result_key, error, created_at, updated_at`

// JobRepository implements repository.JobRepository.
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

// Create consumes the purchase with a conditional update and inserts the job in one transaction.
func (r *JobRepository) Create(ctx context.Context, job *model.AudioJob, purchase *model.Purchase) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if purchase != nil {
			var consumedAt time.Time
			err := tx.QueryRow(ctx, `
UPDATE purchases
SET consumed = TRUE, consumed_at = NOW()
WHERE id = $1 AND consumed = FALSE AND status = 'paid'
RETURNING consumed_at;
`, purchase.ID).Scan(&consumedAt)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return model.ErrPurchaseConsumed
				}
				return fmt.Errorf("failed to consume purchase: %w", err)
			}
			purchase.Consumed = true
			purchase.ConsumedAt = &consumedAt
			id := purchase.ID
			job.PurchaseID = &id
		}

		row := tx.QueryRow(ctx, `
INSERT INTO audio_jobs (id, account_id, project_id, status, input_text, music_track_id, duration_sec,
                        voice_mode, preset_voice_id, purchase_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING created_at, updated_at;
`,
			job.ID,
			job.AccountID,
			job.ProjectID,
			job.Status,
			job.InputText,
			job.MusicTrackID,
			job.DurationSec,
			job.VoiceMode,
			job.PresetVoiceID,
			job.PurchaseID,
		)
		if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert job: %w", err)
		}
		return nil
	})
}

// Get fetches a job by its identifier.
func (r *JobRepository) Get(ctx context.Context, jobID string) (*model.AudioJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM audio_jobs WHERE id = $1;`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// Claim locks the row, moves it to processing unless terminal, and reports the previous status.
func (r *JobRepository) Claim(ctx context.Context, jobID string) (*model.AudioJob, model.JobStatus, error) {
	var prev model.JobStatus
	var job *model.AudioJob

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT status FROM audio_jobs WHERE id = $1 FOR UPDATE;`, jobID).Scan(&prev); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrNotFound
			}
			return err
		}

		if prev.IsTerminal() {
			current, err := scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM audio_jobs WHERE id = $1;`, jobID))
			if err != nil {
				return err
			}
			job = current
			return model.ErrJobTerminal
		}
		if err := model.CheckTransition(prev, model.JobStatusProcessing); err != nil {
			return err
		}

		claimed, err := scanJob(tx.QueryRow(ctx, `
UPDATE audio_jobs
SET status = 'processing', updated_at = NOW()
WHERE id = $1
RETURNING `+jobColumns+`;
`, jobID))
		if err != nil {
			return err
		}
		job = claimed
		return nil
	})
	return job, prev, err
}

// Complete records the result key. Only a processing job can complete.
func (r *JobRepository) Complete(ctx context.Context, jobID, resultKey string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE audio_jobs
SET status = 'completed', result_key = $2, updated_at = NOW()
WHERE id = $1 AND status = 'processing';
`, jobID, resultKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, jobID, model.JobStatusCompleted)
	}
	return nil
}

// Fail records the error message. Only a processing job can fail.
func (r *JobRepository) Fail(ctx context.Context, jobID, errMsg string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE audio_jobs
SET status = 'failed', error = $2, updated_at = NOW()
WHERE id = $1 AND status = 'processing';
`, jobID, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, jobID, model.JobStatusFailed)
	}
	return nil
}

func (r *JobRepository) transitionError(ctx context.Context, jobID string, to model.JobStatus) error {
	job, err := r.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := model.CheckTransition(job.Status, to); err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s changed concurrently", model.ErrInvalidTransition, jobID)
}

// ClearResult drops the result reference only if it still matches resultKey.
func (r *JobRepository) ClearResult(ctx context.Context, jobID, resultKey string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE audio_jobs
SET result_key = NULL, updated_at = NOW()
WHERE id = $1 AND result_key = $2;
`, jobID, resultKey)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListResultsBefore returns completed jobs older than cutoff that still reference a result.
func (r *JobRepository) ListResultsBefore(ctx context.Context, cutoff time.Time) ([]*model.AudioJob, error) {
	return r.list(ctx, `
SELECT `+jobColumns+`
FROM audio_jobs
WHERE status = 'completed' AND result_key IS NOT NULL AND created_at < $1
ORDER BY created_at;
`, cutoff)
}

// ListResultsByAccount returns the account's completed jobs that still reference a result.
func (r *JobRepository) ListResultsByAccount(ctx context.Context, accountID string) ([]*model.AudioJob, error) {
	return r.list(ctx, `
SELECT `+jobColumns+`
FROM audio_jobs
WHERE status = 'completed' AND result_key IS NOT NULL AND account_id = $1
ORDER BY created_at;
`, accountID)
}

func (r *JobRepository) list(ctx context.Context, query string, args ...any) ([]*model.AudioJob, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.AudioJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*model.AudioJob, error) {
	var job model.AudioJob
	if err := row.Scan(
		&job.ID,
		&job.AccountID,
		&job.ProjectID,
		&job.Status,
		&job.InputText,
		&job.MusicTrackID,
		&job.DurationSec,
		&job.VoiceMode,
		&job.PresetVoiceID,
		&job.PurchaseID,
		&job.ResultKey,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}
