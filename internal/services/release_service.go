package services

import (
	"context"
	"io"

	"github.com/updrift/engine/internal/models"
	"github.com/updrift/engine/internal/repository"
	"github.com/updrift/engine/internal/resolver"
	"github.com/updrift/engine/internal/storage"
	appErr "github.com/updrift/engine/pkg/errors"
	"github.com/updrift/engine/pkg/logger"
	"github.com/updrift/engine/pkg/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateReleaseInput carries one publish request. Exactly the column set of
// the active policy may be populated; writes to the other set are refused so
// a deployment never mixes representations.
type CreateReleaseInput struct {
	Name     string
	Channels []string // empty = default release, visible to channel-less queries
	Bundle   io.Reader

	AndroidAvailable bool
	AndroidMin       *uint64
	AndroidMax       *uint64
	IOSAvailable     bool
	IOSMin           *uint64
	IOSMax           *uint64

	AndroidRequirements *string
	IOSRequirements     *string
}

// UpdateReleaseInput edits an existing release. Nil leaves a field untouched;
// Channels nil leaves the binding alone, empty slice resets to default.
type UpdateReleaseInput struct {
	Name     *string
	Channels []string

	AndroidAvailable *bool
	AndroidMin       *uint64
	AndroidMax       *uint64
	IOSAvailable     *bool
	IOSMin           *uint64
	IOSMax           *uint64

	AndroidRequirements *string
	IOSRequirements     *string

	ClearAndroidBounds bool
	ClearIOSBounds     bool
}

type ReleaseService interface {
	Create(ctx context.Context, project *models.Project, input *CreateReleaseInput) (*models.Release, error)
	Get(ctx context.Context, project *models.Project, token string) (*models.Release, error)
	List(ctx context.Context, project *models.Project) ([]models.Release, error)
	Update(ctx context.Context, project *models.Project, token string, input *UpdateReleaseInput) (*models.Release, error)
	Delete(ctx context.Context, project *models.Project, token string) error
}

type releaseService struct {
	db          *gorm.DB
	policy      resolver.Policy
	releaseRepo repository.ReleaseRepository
	channelRepo repository.ChannelRepository
	resRepo     repository.ResolutionRepository
	store       storage.Store
}

func NewReleaseService(db *gorm.DB, policy resolver.Policy, releaseRepo repository.ReleaseRepository, channelRepo repository.ChannelRepository, resRepo repository.ResolutionRepository, store storage.Store) ReleaseService {
	return &releaseService{db: db, policy: policy, releaseRepo: releaseRepo, channelRepo: channelRepo, resRepo: resRepo, store: store}
}

var _ ReleaseService = (*releaseService)(nil)

func (s *releaseService) Create(ctx context.Context, project *models.Project, input *CreateReleaseInput) (*models.Release, error) {
	logger.L().Info("create release", zap.Uint("project_id", project.ID), zap.String("name", input.Name))

	if input.Name == "" {
		return nil, appErr.New(appErr.CodeInvalid, "release name is required")
	}
	if input.Bundle == nil {
		return nil, appErr.New(appErr.CodeInvalid, "bundle file is required")
	}
	taken, err := s.releaseRepo.NameTaken(ctx, project.ID, input.Name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, appErr.New(appErr.CodeAlreadyExists, "release name already used in project").WithMeta("name", input.Name)
	}

	rel := &models.Release{
		Token:            utils.NewToken(),
		ProjectID:        project.ID,
		Name:             input.Name,
		AndroidAvailable: input.AndroidAvailable,
		AndroidMin:       input.AndroidMin,
		AndroidMax:       input.AndroidMax,
		IOSAvailable:     input.IOSAvailable,
		IOSMin:           input.IOSMin,
		IOSMax:           input.IOSMax,

		AndroidRequirements: input.AndroidRequirements,
		IOSRequirements:     input.IOSRequirements,
	}
	if err := s.validateEligibility(rel); err != nil {
		return nil, err
	}

	channelIDs, err := s.resolveChannelIDs(ctx, project.ID, input.Channels)
	if err != nil {
		return nil, err
	}

	path, size, err := s.store.Save(rel.Token, input.Bundle)
	if err != nil {
		return nil, err
	}
	rel.Path = path

	f, err := s.store.Open(path)
	if err != nil {
		_ = s.store.Remove(path)
		return nil, err
	}
	sig, err := utils.SignReader(project.PrivateKey, f)
	f.Close()
	if err != nil {
		_ = s.store.Remove(path)
		return nil, appErr.Wrap(err, appErr.CodeInternal, "sign bundle failed")
	}
	rel.Signature = sig

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		releaseRepo := s.releaseRepo.WithTx(tx)
		if err := releaseRepo.Create(ctx, rel); err != nil {
			return err
		}
		if err := releaseRepo.ReplaceChannels(ctx, rel.ID, channelIDs); err != nil {
			return err
		}
		// Only default releases can change the answer of cached
		// (channel-less) queries, and a fresh release outranks every
		// earlier one, so affected rows can be rewritten in place.
		if len(channelIDs) == 0 {
			if err := s.rewriteCacheForCreate(ctx, s.resRepo.WithTx(tx), project.ID, rel); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = s.store.Remove(path)
		return nil, err
	}

	logger.L().Info("release published",
		zap.Uint("project_id", project.ID),
		zap.Uint("release_id", rel.ID),
		zap.String("token", rel.Token),
		zap.Int64("bundle_bytes", size))
	return rel, nil
}

func (s *releaseService) rewriteCacheForCreate(ctx context.Context, resRepo repository.ResolutionRepository, projectID uint, rel *models.Release) error {
	for _, platform := range []resolver.Platform{resolver.PlatformAndroid, resolver.PlatformIOS} {
		elig := EligibilityFor(s.policy, platform, rel)
		if elig == nil {
			continue
		}
		rows, err := resRepo.ListGroup(ctx, projectID, string(platform))
		if err != nil {
			return err
		}
		cached := make([]resolver.CachedRow, 0, len(rows))
		for i := range rows {
			cached = append(cached, resolver.CachedRow{
				RowID:      rows[i].ID,
				AppVersion: rows[i].AppVersion,
				ReleaseID:  rows[i].ReleaseID,
			})
		}
		newRel := resolver.Candidate{ReleaseID: rel.ID, CreatedAt: rel.CreatedAt, Eligibility: elig}
		for _, u := range resolver.PlanCreateInvalidation(s.policy, newRel, cached) {
			if err := resRepo.ApplyUpdate(ctx, u.RowID, u.ReleaseID, u.MarkDirty); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *releaseService) Get(ctx context.Context, project *models.Project, token string) (*models.Release, error) {
	var rel models.Release
	if err := s.releaseRepo.GetByToken(ctx, project.ID, token, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (s *releaseService) List(ctx context.Context, project *models.Project) ([]models.Release, error) {
	return s.releaseRepo.ListByProject(ctx, project.ID)
}

func (s *releaseService) Update(ctx context.Context, project *models.Project, token string, input *UpdateReleaseInput) (*models.Release, error) {
	var rel models.Release
	if err := s.releaseRepo.GetByToken(ctx, project.ID, token, &rel); err != nil {
		return nil, err
	}

	if input.Name != nil && *input.Name != rel.Name {
		taken, err := s.releaseRepo.NameTaken(ctx, project.ID, *input.Name, rel.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, appErr.New(appErr.CodeAlreadyExists, "release name already used in project").WithMeta("name", *input.Name)
		}
		rel.Name = *input.Name
	}

	if input.AndroidAvailable != nil {
		rel.AndroidAvailable = *input.AndroidAvailable
	}
	if input.IOSAvailable != nil {
		rel.IOSAvailable = *input.IOSAvailable
	}
	if input.ClearAndroidBounds {
		rel.AndroidMin, rel.AndroidMax = nil, nil
	}
	if input.ClearIOSBounds {
		rel.IOSMin, rel.IOSMax = nil, nil
	}
	if input.AndroidMin != nil {
		rel.AndroidMin = input.AndroidMin
	}
	if input.AndroidMax != nil {
		rel.AndroidMax = input.AndroidMax
	}
	if input.IOSMin != nil {
		rel.IOSMin = input.IOSMin
	}
	if input.IOSMax != nil {
		rel.IOSMax = input.IOSMax
	}
	if input.AndroidRequirements != nil {
		rel.AndroidRequirements = input.AndroidRequirements
	}
	if input.IOSRequirements != nil {
		rel.IOSRequirements = input.IOSRequirements
	}
	if err := s.validateEligibility(&rel); err != nil {
		return nil, err
	}

	var channelIDs []*uint
	if input.Channels != nil {
		ids, err := s.resolveChannelIDs(ctx, project.ID, input.Channels)
		if err != nil {
			return nil, err
		}
		channelIDs = ids
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		releaseRepo := s.releaseRepo.WithTx(tx)
		if err := releaseRepo.Update(ctx, &rel); err != nil {
			return err
		}
		if input.Channels != nil {
			if err := releaseRepo.ReplaceChannels(ctx, rel.ID, channelIDs); err != nil {
				return err
			}
		}
		// An edit can demote the current winner of any cached query, so
		// the whole project is swept lazily rather than rewritten here.
		return s.resRepo.WithTx(tx).MarkProjectDirty(ctx, project.ID)
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("release updated", zap.Uint("project_id", project.ID), zap.Uint("release_id", rel.ID))
	return &rel, nil
}

func (s *releaseService) Delete(ctx context.Context, project *models.Project, token string) error {
	var rel models.Release
	if err := s.releaseRepo.GetByToken(ctx, project.ID, token, &rel); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Rows pointing at the release lose their answer before the row
		// disappears; a clean cache entry never names a gone artifact.
		if err := s.resRepo.WithTx(tx).DetachRelease(ctx, rel.ID); err != nil {
			return err
		}
		return s.releaseRepo.WithTx(tx).Delete(ctx, rel.ID)
	})
	if err != nil {
		return err
	}

	if err := s.store.Remove(rel.Path); err != nil {
		logger.L().Warn("remove bundle after delete failed",
			zap.Uint("release_id", rel.ID), zap.String("path", rel.Path), zap.Error(err))
	}
	logger.L().Info("release deleted", zap.Uint("project_id", project.ID), zap.Uint("release_id", rel.ID))
	return nil
}

// validateEligibility rejects writes that do not fit the active policy:
// inverted build windows, malformed constraint expressions, or columns
// belonging to the other policy.
func (s *releaseService) validateEligibility(rel *models.Release) error {
	switch s.policy {
	case resolver.PolicyRange:
		if rel.AndroidRequirements != nil || rel.IOSRequirements != nil {
			return appErr.New(appErr.CodeInvalid, "constraint expressions are not accepted under the range policy")
		}
		if rel.AndroidMin != nil && rel.AndroidMax != nil && *rel.AndroidMin > *rel.AndroidMax {
			return appErr.New(appErr.CodeInvalid, "android build window is inverted")
		}
		if rel.IOSMin != nil && rel.IOSMax != nil && *rel.IOSMin > *rel.IOSMax {
			return appErr.New(appErr.CodeInvalid, "ios build window is inverted")
		}
	case resolver.PolicyConstraint:
		if rel.AndroidMin != nil || rel.AndroidMax != nil || rel.IOSMin != nil || rel.IOSMax != nil {
			return appErr.New(appErr.CodeInvalid, "build windows are not accepted under the constraint policy")
		}
		if rel.AndroidRequirements == nil && rel.IOSRequirements == nil {
			return appErr.New(appErr.CodeInvalid, "at least one platform constraint is required")
		}
		if rel.AndroidRequirements != nil {
			if _, err := resolver.ParseConstraint(*rel.AndroidRequirements); err != nil {
				return err
			}
		}
		if rel.IOSRequirements != nil {
			if _, err := resolver.ParseConstraint(*rel.IOSRequirements); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *releaseService) resolveChannelIDs(ctx context.Context, projectID uint, names []string) ([]*uint, error) {
	ids := make([]*uint, 0, len(names))
	for _, name := range names {
		var ch models.Channel
		if err := s.channelRepo.GetByName(ctx, projectID, name, &ch); err != nil {
			if appErr.IsCode(err, appErr.CodeNotFound) {
				return nil, appErr.New(appErr.CodeInvalid, "unknown channel").WithMeta("channel", name)
			}
			return nil, err
		}
		id := ch.ID
		ids = append(ids, &id)
	}
	return ids, nil
}
