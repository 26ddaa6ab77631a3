package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/affirmstudio/api/internal/model"
)

// VoiceSampleRepository implements repository.VoiceSampleRepository.
type VoiceSampleRepository struct {
	pool *pgxpool.Pool
}

// NewVoiceSampleRepository creates a new voice sample repository backed by PostgreSQL.
func NewVoiceSampleRepository(pool *pgxpool.Pool) *VoiceSampleRepository {
	return &VoiceSampleRepository{pool: pool}
}

func (r *VoiceSampleRepository) Create(ctx context.Context, v *model.VoiceSample) error {
	return r.pool.QueryRow(ctx, `
INSERT INTO voice_samples (id, account_id, key, consent)
VALUES ($1, $2, $3, $4)
RETURNING created_at;
`, v.ID, v.AccountID, v.Key, v.Consent).Scan(&v.CreatedAt)
}

func (r *VoiceSampleRepository) Latest(ctx context.Context, accountID string) (*model.VoiceSample, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, account_id, key, consent, created_at
FROM voice_samples
WHERE account_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1;
`, accountID)
	v, err := scanSample(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *VoiceSampleRepository) ListByAccount(ctx context.Context, accountID string) ([]*model.VoiceSample, error) {
	return r.list(ctx, `
SELECT id, account_id, key, consent, created_at
FROM voice_samples
WHERE account_id = $1
ORDER BY created_at DESC;
`, accountID)
}

func (r *VoiceSampleRepository) ListBefore(ctx context.Context, cutoff time.Time) ([]*model.VoiceSample, error) {
	return r.list(ctx, `
SELECT id, account_id, key, consent, created_at
FROM voice_samples
WHERE created_at < $1
ORDER BY created_at;
`, cutoff)
}

func (r *VoiceSampleRepository) Delete(ctx context.Context, sampleID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM voice_samples WHERE id = $1;`, sampleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *VoiceSampleRepository) list(ctx context.Context, query string, args ...any) ([]*model.VoiceSample, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.VoiceSample
	for rows.Next() {
		v, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanSample(row pgx.Row) (*model.VoiceSample, error) {
	var v model.VoiceSample
	if err := row.Scan(&v.ID, &v.AccountID, &v.Key, &v.Consent, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

// ProjectRepository implements repository.ProjectRepository.
type ProjectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository creates a new project repository backed by PostgreSQL.
func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) error {
	return r.pool.QueryRow(ctx, `
INSERT INTO projects (id, account_id, title, language)
VALUES ($1, $2, $3, $4)
RETURNING created_at;
`, p.ID, p.AccountID, p.Title, p.Language).Scan(&p.CreatedAt)
}

func (r *ProjectRepository) Get(ctx context.Context, projectID string) (*model.Project, error) {
	var p model.Project
	err := r.pool.QueryRow(ctx, `
SELECT id, account_id, title, language, created_at
FROM projects
WHERE id = $1;
`, projectID).Scan(&p.ID, &p.AccountID, &p.Title, &p.Language, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) ListByAccount(ctx context.Context, accountID string) ([]*model.Project, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, account_id, title, language, created_at
FROM projects
WHERE account_id = $1
ORDER BY created_at DESC;
`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Title, &p.Language, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
