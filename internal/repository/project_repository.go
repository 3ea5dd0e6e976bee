package repository

import (
	"context"

	"github.com/updrift/engine/internal/models"
	appErr "github.com/updrift/engine/pkg/errors"
	"gorm.io/gorm"
)

type ProjectRepository interface {
	BaseRepository[models.Project]
	GetByToken(ctx context.Context, token string, dest *models.Project) error
	List(ctx context.Context) ([]models.Project, error)
	WithTx(tx *gorm.DB) ProjectRepository
}

type projectRepository struct {
	BaseRepository[models.Project]
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{BaseRepository: NewBaseRepository[models.Project](db), db: db}
}

func (r *projectRepository) WithTx(tx *gorm.DB) ProjectRepository {
	return NewProjectRepository(tx)
}

func (r *projectRepository) GetByToken(ctx context.Context, token string, dest *models.Project) error {
	if err := r.db.WithContext(ctx).First(dest, "token = ?", token).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "project not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get project by token failed")
	}
	return nil
}

func (r *projectRepository) List(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list projects failed")
	}
	return out, nil
}
