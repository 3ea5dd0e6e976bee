package repository

import (
	"context"

	"github.com/updrift/engine/internal/models"
	appErr "github.com/updrift/engine/pkg/errors"
	"gorm.io/gorm"
)

type ChannelRepository interface {
	BaseRepository[models.Channel]
	ListByProject(ctx context.Context, projectID uint) ([]models.Channel, error)
	GetByName(ctx context.Context, projectID uint, name string, dest *models.Channel) error
	WithTx(tx *gorm.DB) ChannelRepository
}

type channelRepository struct {
	BaseRepository[models.Channel]
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{BaseRepository: NewBaseRepository[models.Channel](db), db: db}
}

func (r *channelRepository) WithTx(tx *gorm.DB) ChannelRepository {
	return NewChannelRepository(tx)
}

func (r *channelRepository) ListByProject(ctx context.Context, projectID uint) ([]models.Channel, error) {
	var out []models.Channel
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("name ASC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list channels failed")
	}
	return out, nil
}

func (r *channelRepository) GetByName(ctx context.Context, projectID uint, name string, dest *models.Channel) error {
	err := r.db.WithContext(ctx).Where("project_id = ? AND name = ?", projectID, name).First(dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "channel not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get channel by name failed")
	}
	return nil
}
