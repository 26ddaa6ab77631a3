package repository

import (
	"context"
	"time"

	"github.com/affirmstudio/api/internal/model"
)

// JobRepository is the Job Store. Only the worker moves a job out of queued.
type JobRepository interface {
	// Create inserts a queued job. When purchase is non-nil it is marked consumed in the
	// same transaction; model.ErrPurchaseConsumed means another job got it first and nothing was written.
	Create(ctx context.Context, job *model.AudioJob, purchase *model.Purchase) error
	Get(ctx context.Context, jobID string) (*model.AudioJob, error)

	// Claim moves a queued or processing job to processing and returns it with its previous status.
	// A terminal job is returned with model.ErrJobTerminal.
	Claim(ctx context.Context, jobID string) (*model.AudioJob, model.JobStatus, error)
	Complete(ctx context.Context, jobID, resultKey string) error
	Fail(ctx context.Context, jobID, errMsg string) error

	// ClearResult removes the result reference if it still equals resultKey.
	ClearResult(ctx context.Context, jobID, resultKey string) (bool, error)
	ListResultsBefore(ctx context.Context, cutoff time.Time) ([]*model.AudioJob, error)
	ListResultsByAccount(ctx context.Context, accountID string) ([]*model.AudioJob, error)
}

// PurchaseRepository stores entitlement units.
type PurchaseRepository interface {
	Create(ctx context.Context, purchase *model.Purchase) error
	Get(ctx context.Context, purchaseID string) (*model.Purchase, error)
	ListByAccount(ctx context.Context, accountID string) ([]*model.Purchase, error)
	FindEligible(ctx context.Context, accountID string, durationSec int, purchaseID *string) (*model.Purchase, error)
	// MarkPaid confirms a pending purchase. Already paid purchases are returned unchanged.
	MarkPaid(ctx context.Context, purchaseID, accountID string) (*model.Purchase, error)
	// MarkExpired expires a pending purchase. Paid and already expired purchases are returned unchanged.
	MarkExpired(ctx context.Context, purchaseID, accountID string) (*model.Purchase, error)
}

// VoiceSampleRepository stores uploaded voice sample metadata.
type VoiceSampleRepository interface {
	Create(ctx context.Context, sample *model.VoiceSample) error
	Latest(ctx context.Context, accountID string) (*model.VoiceSample, error)
	ListByAccount(ctx context.Context, accountID string) ([]*model.VoiceSample, error)
	ListBefore(ctx context.Context, cutoff time.Time) ([]*model.VoiceSample, error)
	Delete(ctx context.Context, sampleID string) (bool, error)
}

// ProjectRepository stores projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	Get(ctx context.Context, projectID string) (*model.Project, error)
	ListByAccount(ctx context.Context, accountID string) ([]*model.Project, error)
}

// Repositories bundles the stores a process needs.
type Repositories struct {
	Jobs         JobRepository
	Purchases    PurchaseRepository
	VoiceSamples VoiceSampleRepository
	Projects     ProjectRepository
}
