package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/affirmstudio/api/internal/model"
)

// JobRepository implements repository.JobRepository in memory.
type JobRepository struct {
	s *Store
}

func (r *JobRepository) Create(_ context.Context, job *model.AudioJob, purchase *model.Purchase) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	now := r.s.now().UTC()
	if purchase != nil {
		row, ok := r.s.purchases[purchase.ID]
		if !ok || row.purchase.Status != model.PurchaseStatusPaid || row.purchase.Consumed {
			return model.ErrPurchaseConsumed
		}
		row.purchase.Consumed = true
		row.purchase.ConsumedAt = &now
		purchase.Consumed = true
		purchase.ConsumedAt = &now
		id := purchase.ID
		job.PurchaseID = &id
	}

	job.CreatedAt = r.s.stamp(job.CreatedAt)
	job.UpdatedAt = job.CreatedAt
	r.s.jobs[job.ID] = &jobRow{seq: r.s.nextSeq(), job: *cloneJob(*job)}
	return nil
}

func (r *JobRepository) Get(_ context.Context, jobID string) (*model.AudioJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.jobs[jobID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneJob(row.job), nil
}

func (r *JobRepository) Claim(_ context.Context, jobID string) (*model.AudioJob, model.JobStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.jobs[jobID]
	if !ok {
		return nil, "", model.ErrNotFound
	}
	prev := row.job.Status
	if prev.IsTerminal() {
		return cloneJob(row.job), prev, model.ErrJobTerminal
	}
	if err := model.CheckTransition(prev, model.JobStatusProcessing); err != nil {
		return nil, prev, err
	}
	row.job.Status = model.JobStatusProcessing
	row.job.UpdatedAt = r.s.now().UTC()
	return cloneJob(row.job), prev, nil
}

func (r *JobRepository) Complete(_ context.Context, jobID, resultKey string) error {
	return r.finish(jobID, model.JobStatusCompleted, func(j *model.AudioJob) {
		j.ResultKey = &resultKey
	})
}

func (r *JobRepository) Fail(_ context.Context, jobID, errMsg string) error {
	return r.finish(jobID, model.JobStatusFailed, func(j *model.AudioJob) {
		j.Error = &errMsg
	})
}

func (r *JobRepository) finish(jobID string, to model.JobStatus, apply func(*model.AudioJob)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.jobs[jobID]
	if !ok {
		return model.ErrNotFound
	}
	if row.job.Status != model.JobStatusProcessing {
		return model.CheckTransition(row.job.Status, to)
	}
	row.job.Status = to
	row.job.UpdatedAt = r.s.now().UTC()
	apply(&row.job)
	return nil
}

func (r *JobRepository) ClearResult(_ context.Context, jobID, resultKey string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.jobs[jobID]
	if !ok {
		return false, model.ErrNotFound
	}
	if row.job.ResultKey == nil || *row.job.ResultKey != resultKey {
		return false, nil
	}
	row.job.ResultKey = nil
	row.job.UpdatedAt = r.s.now().UTC()
	return true, nil
}

func (r *JobRepository) ListResultsBefore(_ context.Context, cutoff time.Time) ([]*model.AudioJob, error) {
	return r.listResults(func(j *model.AudioJob) bool { return j.CreatedAt.Before(cutoff) }), nil
}

func (r *JobRepository) ListResultsByAccount(_ context.Context, accountID string) ([]*model.AudioJob, error) {
	return r.listResults(func(j *model.AudioJob) bool { return j.AccountID == accountID }), nil
}

func (r *JobRepository) listResults(match func(*model.AudioJob) bool) []*model.AudioJob {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var rows []*jobRow
	for _, row := range r.s.jobs {
		if row.job.Status == model.JobStatusCompleted && row.job.ResultKey != nil && match(&row.job) {
			rows = append(rows, row)
		}
	}
	sortRows(rows, func(a, b *jobRow) bool { return a.seq < b.seq })

	out := make([]*model.AudioJob, 0, len(rows))
	for _, row := range rows {
		out = append(out, cloneJob(row.job))
	}
	return out
}
