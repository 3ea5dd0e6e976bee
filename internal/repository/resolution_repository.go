package repository

import (
	"context"

	"github.com/updrift/engine/internal/models"
	appErr "github.com/updrift/engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DirtyGroup identifies one (project, platform) bucket holding rows that need
// recomputation. The sweep loads that bucket's candidate set once.
type DirtyGroup struct {
	ProjectID uint
	Platform  string
}

type ResolutionRepository interface {
	// GetClean returns the memoized row for the key only when it is not
	// flagged for reindex; a dirty row behaves like a miss.
	GetClean(ctx context.Context, projectID uint, platform, appVersion string, dest *models.Resolution) error
	// Upsert writes a freshly computed answer, overwriting any existing row
	// for the key and clearing its dirty flag. Last writer wins; concurrent
	// recomputations of the same key derive the same answer.
	Upsert(ctx context.Context, row *models.Resolution) error
	MarkProjectDirty(ctx context.Context, projectID uint) error
	// DetachRelease clears and dirties every row pointing at the release,
	// so its deletion cannot leave a clean row naming a gone artifact.
	DetachRelease(ctx context.Context, releaseID uint) error
	ListGroup(ctx context.Context, projectID uint, platform string) ([]models.Resolution, error)
	ApplyUpdate(ctx context.Context, rowID uint, releaseID *uint, dirty bool) error
	DirtyGroups(ctx context.Context) ([]DirtyGroup, error)
	ListDirtyAfter(ctx context.Context, projectID uint, platform string, afterID uint, limit int) ([]models.Resolution, error)
	CountDirty(ctx context.Context) (int64, error)
	WithTx(tx *gorm.DB) ResolutionRepository
}

type resolutionRepository struct {
	db *gorm.DB
}

func NewResolutionRepository(db *gorm.DB) ResolutionRepository {
	return &resolutionRepository{db: db}
}

func (r *resolutionRepository) WithTx(tx *gorm.DB) ResolutionRepository {
	return NewResolutionRepository(tx)
}

func (r *resolutionRepository) GetClean(ctx context.Context, projectID uint, platform, appVersion string, dest *models.Resolution) error {
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND platform = ? AND app_version = ? AND needs_reindex = false",
			projectID, platform, appVersion).
		First(dest).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return appErr.New(appErr.CodeNotFound, "no clean resolution cached")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get resolution failed")
	}
	return nil
}

func (r *resolutionRepository) Upsert(ctx context.Context, row *models.Resolution) error {
	row.NeedsReindex = false
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "project_id"}, {Name: "platform"}, {Name: "app_version"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"release_id", "needs_reindex", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "upsert resolution failed")
	}
	return nil
}

func (r *resolutionRepository) MarkProjectDirty(ctx context.Context, projectID uint) error {
	err := r.db.WithContext(ctx).Model(&models.Resolution{}).
		Where("project_id = ? AND needs_reindex = false", projectID).
		Update("needs_reindex", true).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "mark project resolutions dirty failed")
	}
	return nil
}

func (r *resolutionRepository) DetachRelease(ctx context.Context, releaseID uint) error {
	err := r.db.WithContext(ctx).Model(&models.Resolution{}).
		Where("release_id = ?", releaseID).
		Updates(map[string]any{"release_id": nil, "needs_reindex": true}).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "detach release from resolutions failed")
	}
	return nil
}

func (r *resolutionRepository) ListGroup(ctx context.Context, projectID uint, platform string) ([]models.Resolution, error) {
	var out []models.Resolution
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND platform = ?", projectID, platform).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list resolution group failed")
	}
	return out, nil
}

func (r *resolutionRepository) ApplyUpdate(ctx context.Context, rowID uint, releaseID *uint, dirty bool) error {
	err := r.db.WithContext(ctx).Model(&models.Resolution{}).
		Where("id = ?", rowID).
		Updates(map[string]any{"release_id": releaseID, "needs_reindex": dirty}).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "apply resolution update failed")
	}
	return nil
}

func (r *resolutionRepository) DirtyGroups(ctx context.Context) ([]DirtyGroup, error) {
	var out []DirtyGroup
	err := r.db.WithContext(ctx).Model(&models.Resolution{}).
		Select("DISTINCT project_id, platform").
		Where("needs_reindex = true").
		Scan(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list dirty groups failed")
	}
	return out, nil
}

func (r *resolutionRepository) ListDirtyAfter(ctx context.Context, projectID uint, platform string, afterID uint, limit int) ([]models.Resolution, error) {
	var out []models.Resolution
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND platform = ? AND needs_reindex = true AND id > ?",
			projectID, platform, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list dirty resolutions failed")
	}
	return out, nil
}

func (r *resolutionRepository) CountDirty(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Resolution{}).
		Where("needs_reindex = true").
		Count(&count).Error
	if err != nil {
		return 0, appErr.Wrap(err, appErr.CodeInternal, "count dirty resolutions failed")
	}
	return count, nil
}
