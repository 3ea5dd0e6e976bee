package services

import (
	"context"

	"github.com/updrift/engine/internal/models"
	"github.com/updrift/engine/internal/repository"
	appErr "github.com/updrift/engine/pkg/errors"
	"github.com/updrift/engine/pkg/logger"
	"github.com/updrift/engine/pkg/utils"
	"go.uber.org/zap"
)

type CreateProjectInput struct {
	Name        string
	Description string
}

type UpdateProjectInput struct {
	Name        *string
	Description *string
}

// ProjectService manages project lifecycle. Every project gets an RSA signing
// keypair at creation; the private half never leaves the server.
type ProjectService interface {
	Create(ctx context.Context, input *CreateProjectInput) (*models.Project, error)
	GetByToken(ctx context.Context, token string) (*models.Project, error)
	List(ctx context.Context) ([]models.Project, error)
	Update(ctx context.Context, token string, input *UpdateProjectInput) (*models.Project, error)
	Delete(ctx context.Context, token string) error
}

type projectService struct {
	projectRepo repository.ProjectRepository
}

func NewProjectService(projectRepo repository.ProjectRepository) ProjectService {
	return &projectService{projectRepo: projectRepo}
}

var _ ProjectService = (*projectService)(nil)

func (s *projectService) Create(ctx context.Context, input *CreateProjectInput) (*models.Project, error) {
	if input.Name == "" {
		return nil, appErr.New(appErr.CodeInvalid, "project name is required")
	}

	priv, pub, err := utils.GenerateKeyPair()
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "generate signing keypair failed")
	}

	p := &models.Project{
		Token:       utils.NewToken(),
		Name:        input.Name,
		Description: input.Description,
		PrivateKey:  priv,
		PublicKey:   pub,
	}
	if err := s.projectRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	logger.L().Info("project created", zap.Uint("project_id", p.ID), zap.String("token", p.Token))
	return p, nil
}

func (s *projectService) GetByToken(ctx context.Context, token string) (*models.Project, error) {
	var p models.Project
	if err := s.projectRepo.GetByToken(ctx, token, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *projectService) List(ctx context.Context) ([]models.Project, error) {
	return s.projectRepo.List(ctx)
}

func (s *projectService) Update(ctx context.Context, token string, input *UpdateProjectInput) (*models.Project, error) {
	var p models.Project
	if err := s.projectRepo.GetByToken(ctx, token, &p); err != nil {
		return nil, err
	}
	if input.Name != nil {
		if *input.Name == "" {
			return nil, appErr.New(appErr.CodeInvalid, "project name is required")
		}
		p.Name = *input.Name
	}
	if input.Description != nil {
		p.Description = *input.Description
	}
	if err := s.projectRepo.Update(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *projectService) Delete(ctx context.Context, token string) error {
	var p models.Project
	if err := s.projectRepo.GetByToken(ctx, token, &p); err != nil {
		return err
	}
	// Releases, channels, pivot rows and cache rows go with the project via
	// FK cascade.
	if err := s.projectRepo.Delete(ctx, p.ID); err != nil {
		return err
	}
	logger.L().Info("project deleted", zap.Uint("project_id", p.ID))
	return nil
}
