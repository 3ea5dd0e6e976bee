package repository

import (
	"context"

	"github.com/updrift/engine/internal/models"
	"github.com/updrift/engine/internal/resolver"
	appErr "github.com/updrift/engine/pkg/errors"
	"gorm.io/gorm"
)

// ChannelSelector narrows the candidate set by channel membership.
// Zero value = default releases only (unrestricted, pivot channel_id NULL).
// A non-nil ChannelID also admits default releases as fallback. Any=true
// disables channel filtering entirely (used by the admin list).
type ChannelSelector struct {
	ChannelID *uint
	Any       bool
}

type ReleaseRepository interface {
	BaseRepository[models.Release]
	GetByToken(ctx context.Context, projectID uint, token string, dest *models.Release) error
	ListByProject(ctx context.Context, projectID uint) ([]models.Release, error)
	// ListCandidates returns releases that could serve the platform under the
	// active policy, channel-filtered, newest first. Per-version eligibility
	// is evaluated by the resolver, not in SQL.
	ListCandidates(ctx context.Context, projectID uint, platform resolver.Platform, policy resolver.Policy, sel ChannelSelector) ([]models.Release, error)
	NameTaken(ctx context.Context, projectID uint, name string, excludeID uint) (bool, error)
	ReplaceChannels(ctx context.Context, releaseID uint, channelIDs []*uint) error
	WithTx(tx *gorm.DB) ReleaseRepository
}

type releaseRepository struct {
	BaseRepository[models.Release]
	db *gorm.DB
}

func NewReleaseRepository(db *gorm.DB) ReleaseRepository {
	return &releaseRepository{BaseRepository: NewBaseRepository[models.Release](db), db: db}
}

func (r *releaseRepository) WithTx(tx *gorm.DB) ReleaseRepository {
	return NewReleaseRepository(tx)
}

func (r *releaseRepository) GetByToken(ctx context.Context, projectID uint, token string, dest *models.Release) error {
	err := r.db.WithContext(ctx).Where("project_id = ? AND token = ?", projectID, token).First(dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "release not found")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get release by token failed")
	}
	return nil
}

func (r *releaseRepository) ListByProject(ctx context.Context, projectID uint) ([]models.Release, error) {
	var out []models.Release
	err := r.db.WithContext(ctx).
		Preload("Channels").
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list releases failed")
	}
	return out, nil
}

func (r *releaseRepository) ListCandidates(ctx context.Context, projectID uint, platform resolver.Platform, policy resolver.Policy, sel ChannelSelector) ([]models.Release, error) {
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID)

	// Platform served at all? The fine-grained window check happens in the
	// resolver against the loaded rows.
	switch policy {
	case resolver.PolicyRange:
		if platform == resolver.PlatformIOS {
			q = q.Where("ios_available = true")
		} else {
			q = q.Where("android_available = true")
		}
	case resolver.PolicyConstraint:
		if platform == resolver.PlatformIOS {
			q = q.Where("ios_requirements IS NOT NULL")
		} else {
			q = q.Where("android_requirements IS NOT NULL")
		}
	}

	if !sel.Any {
		if sel.ChannelID != nil {
			q = q.Where(
				"EXISTS (SELECT 1 FROM release_channels rc WHERE rc.release_id = releases.id AND (rc.channel_id = ? OR rc.channel_id IS NULL))",
				*sel.ChannelID,
			)
		} else {
			q = q.Where(
				"EXISTS (SELECT 1 FROM release_channels rc WHERE rc.release_id = releases.id AND rc.channel_id IS NULL)",
			)
		}
	}

	var out []models.Release
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list candidates failed")
	}
	return out, nil
}

func (r *releaseRepository) NameTaken(ctx context.Context, projectID uint, name string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Release{}).
		Where("project_id = ? AND name = ?", projectID, name)
	if excludeID != 0 {
		q = q.Where("id != ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, appErr.Wrap(err, appErr.CodeInternal, "check release name failed")
	}
	return count > 0, nil
}

func (r *releaseRepository) ReplaceChannels(ctx context.Context, releaseID uint, channelIDs []*uint) error {
	if err := r.db.WithContext(ctx).Where("release_id = ?", releaseID).Delete(&models.ReleaseChannel{}).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "clear release channels failed")
	}
	rows := make([]models.ReleaseChannel, 0, len(channelIDs))
	for _, id := range channelIDs {
		rows = append(rows, models.ReleaseChannel{ReleaseID: releaseID, ChannelID: id})
	}
	if len(rows) == 0 {
		rows = append(rows, models.ReleaseChannel{ReleaseID: releaseID})
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "insert release channels failed")
	}
	return nil
}
