package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/affirmstudio/api/internal/model"
)

// VoiceSampleRepository implements repository.VoiceSampleRepository in memory.
type VoiceSampleRepository struct {
	s *Store
}

func (r *VoiceSampleRepository) Create(_ context.Context, sample *model.VoiceSample) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.samples[sample.ID]; exists {
		return fmt.Errorf("voice sample %s already exists", sample.ID)
	}
	sample.CreatedAt = r.s.stamp(sample.CreatedAt)
	r.s.samples[sample.ID] = &sampleRow{seq: r.s.nextSeq(), sample: *sample}
	return nil
}

func (r *VoiceSampleRepository) Latest(_ context.Context, accountID string) (*model.VoiceSample, error) {
	rows := r.list(func(v *model.VoiceSample) bool { return v.AccountID == accountID })
	if len(rows) == 0 {
		return nil, model.ErrNotFound
	}
	return rows[0], nil
}

func (r *VoiceSampleRepository) ListByAccount(_ context.Context, accountID string) ([]*model.VoiceSample, error) {
	return r.list(func(v *model.VoiceSample) bool { return v.AccountID == accountID }), nil
}

func (r *VoiceSampleRepository) ListBefore(_ context.Context, cutoff time.Time) ([]*model.VoiceSample, error) {
	return r.list(func(v *model.VoiceSample) bool { return v.CreatedAt.Before(cutoff) }), nil
}

func (r *VoiceSampleRepository) Delete(_ context.Context, sampleID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.samples[sampleID]; !ok {
		return false, nil
	}
	delete(r.s.samples, sampleID)
	return true, nil
}

func (r *VoiceSampleRepository) list(match func(*model.VoiceSample) bool) []*model.VoiceSample {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var rows []*sampleRow
	for _, row := range r.s.samples {
		if match(&row.sample) {
			rows = append(rows, row)
		}
	}
	sortRows(rows, func(a, b *sampleRow) bool {
		return newestFirst(a.sample.CreatedAt, a.seq, b.sample.CreatedAt, b.seq)
	})

	out := make([]*model.VoiceSample, 0, len(rows))
	for _, row := range rows {
		v := row.sample
		out = append(out, &v)
	}
	return out
}

// ProjectRepository implements repository.ProjectRepository in memory.
type ProjectRepository struct {
	s *Store
}

func (r *ProjectRepository) Create(_ context.Context, project *model.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.projects[project.ID]; exists {
		return fmt.Errorf("project %s already exists", project.ID)
	}
	project.CreatedAt = r.s.stamp(project.CreatedAt)
	r.s.projects[project.ID] = &projectRow{seq: r.s.nextSeq(), project: *project}
	return nil
}

func (r *ProjectRepository) Get(_ context.Context, projectID string) (*model.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.projects[projectID]
	if !ok {
		return nil, model.ErrNotFound
	}
	p := row.project
	return &p, nil
}

func (r *ProjectRepository) ListByAccount(_ context.Context, accountID string) ([]*model.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var rows []*projectRow
	for _, row := range r.s.projects {
		if row.project.AccountID == accountID {
			rows = append(rows, row)
		}
	}
	sortRows(rows, func(a, b *projectRow) bool {
		return newestFirst(a.project.CreatedAt, a.seq, b.project.CreatedAt, b.seq)
	})

	out := make([]*model.Project, 0, len(rows))
	for _, row := range rows {
		p := row.project
		out = append(out, &p)
	}
	return out, nil
}
