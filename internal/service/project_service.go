package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/internal/repository"
)

const defaultProjectLanguage = "ru"

// ProjectService manages projects
type ProjectService struct {
	projects repository.ProjectRepository
}

func NewProjectService(projects repository.ProjectRepository) *ProjectService {
	return &ProjectService{projects: projects}
}

func (s *ProjectService) Create(ctx context.Context, accountID string, req *model.ProjectCreateRequest) (*model.Project, error) {
	lang := req.Language
	if lang == "" {
		lang = defaultProjectLanguage
	}
	project := &model.Project{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Title:     req.Title,
		Language:  lang,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}
	return project, nil
}

func (s *ProjectService) List(ctx context.Context, accountID string) ([]*model.Project, error) {
	items, err := s.projects.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return items, nil
}
