package services

import (
	"context"

	"github.com/updrift/engine/internal/models"
	"github.com/updrift/engine/internal/repository"
	appErr "github.com/updrift/engine/pkg/errors"
	"github.com/updrift/engine/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ChannelService interface {
	Create(ctx context.Context, project *models.Project, name string) (*models.Channel, error)
	List(ctx context.Context, project *models.Project) ([]models.Channel, error)
	Rename(ctx context.Context, project *models.Project, name, newName string) (*models.Channel, error)
	Delete(ctx context.Context, project *models.Project, name string) error
}

type channelService struct {
	db          *gorm.DB
	channelRepo repository.ChannelRepository
	resRepo     repository.ResolutionRepository
}

func NewChannelService(db *gorm.DB, channelRepo repository.ChannelRepository, resRepo repository.ResolutionRepository) ChannelService {
	return &channelService{db: db, channelRepo: channelRepo, resRepo: resRepo}
}

var _ ChannelService = (*channelService)(nil)

func (s *channelService) Create(ctx context.Context, project *models.Project, name string) (*models.Channel, error) {
	if name == "" {
		return nil, appErr.New(appErr.CodeInvalid, "channel name is required")
	}
	var existing models.Channel
	if err := s.channelRepo.GetByName(ctx, project.ID, name, &existing); err == nil {
		return nil, appErr.New(appErr.CodeAlreadyExists, "channel already exists").WithMeta("channel", name)
	} else if !appErr.IsCode(err, appErr.CodeNotFound) {
		return nil, err
	}

	ch := &models.Channel{ProjectID: project.ID, Name: name}
	if err := s.channelRepo.Create(ctx, ch); err != nil {
		return nil, err
	}
	logger.L().Info("channel created", zap.Uint("project_id", project.ID), zap.String("channel", name))
	return ch, nil
}

func (s *channelService) List(ctx context.Context, project *models.Project) ([]models.Channel, error) {
	return s.channelRepo.ListByProject(ctx, project.ID)
}

func (s *channelService) Rename(ctx context.Context, project *models.Project, name, newName string) (*models.Channel, error) {
	if newName == "" {
		return nil, appErr.New(appErr.CodeInvalid, "channel name is required")
	}
	var ch models.Channel
	if err := s.channelRepo.GetByName(ctx, project.ID, name, &ch); err != nil {
		return nil, err
	}
	var clash models.Channel
	if err := s.channelRepo.GetByName(ctx, project.ID, newName, &clash); err == nil {
		return nil, appErr.New(appErr.CodeAlreadyExists, "channel already exists").WithMeta("channel", newName)
	} else if !appErr.IsCode(err, appErr.CodeNotFound) {
		return nil, err
	}
	ch.Name = newName
	if err := s.channelRepo.Update(ctx, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *channelService) Delete(ctx context.Context, project *models.Project, name string) error {
	var ch models.Channel
	if err := s.channelRepo.GetByName(ctx, project.ID, name, &ch); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Dropping a channel removes its pivot rows; a release bound only
		// to this channel becomes unreachable. Cached answers predating
		// the drop are swept rather than reasoned about.
		if err := tx.Where("channel_id = ?", ch.ID).Delete(&models.ReleaseChannel{}).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "clear channel bindings failed")
		}
		if err := s.channelRepo.WithTx(tx).Delete(ctx, ch.ID); err != nil {
			return err
		}
		return s.resRepo.WithTx(tx).MarkProjectDirty(ctx, project.ID)
	})
	if err != nil {
		return err
	}
	logger.L().Info("channel deleted", zap.Uint("project_id", project.ID), zap.String("channel", name))
	return nil
}
