package services

import (
	"context"

	"github.com/updrift/engine/internal/models"
	"github.com/updrift/engine/internal/repository"
	"github.com/updrift/engine/internal/resolver"
	appErr "github.com/updrift/engine/pkg/errors"
	"github.com/updrift/engine/pkg/logger"
	"go.uber.org/zap"
)

// ResolveQuery is one client poll: "given my platform and version, what
// should I download?"
type ResolveQuery struct {
	Platform    resolver.Platform
	RawVersion  string
	ChannelName string // empty = default channel
}

// ResolutionService answers client update queries, memoizing answers in the
// resolution cache. NotFound is a normal outcome (client is up to date or the
// catalog is empty), distinct from invalid input.
type ResolutionService interface {
	Resolve(ctx context.Context, project *models.Project, q ResolveQuery) (*models.Release, error)
}

type resolutionService struct {
	policy      resolver.Policy
	releaseRepo repository.ReleaseRepository
	resRepo     repository.ResolutionRepository
	channelRepo repository.ChannelRepository
}

func NewResolutionService(policy resolver.Policy, releaseRepo repository.ReleaseRepository, resRepo repository.ResolutionRepository, channelRepo repository.ChannelRepository) ResolutionService {
	return &resolutionService{policy: policy, releaseRepo: releaseRepo, resRepo: resRepo, channelRepo: channelRepo}
}

var _ ResolutionService = (*resolutionService)(nil)

func (s *resolutionService) Resolve(ctx context.Context, project *models.Project, q ResolveQuery) (*models.Release, error) {
	v, err := resolver.ParseClientVersion(s.policy, q.RawVersion)
	if err != nil {
		return nil, err
	}

	sel := repository.ChannelSelector{}
	if q.ChannelName != "" {
		var ch models.Channel
		if err := s.channelRepo.GetByName(ctx, project.ID, q.ChannelName, &ch); err != nil {
			if appErr.IsCode(err, appErr.CodeNotFound) {
				return nil, appErr.New(appErr.CodeInvalid, "unknown channel").WithMeta("channel", q.ChannelName)
			}
			return nil, err
		}
		sel.ChannelID = &ch.ID
	}

	// The cache is keyed by (project, platform, app_version) without a
	// channel dimension, so only default-channel traffic is memoized.
	// Named-channel queries always scan.
	cacheable := sel.ChannelID == nil

	if cacheable {
		if rel, hit, err := s.lookupCache(ctx, project, q); err != nil {
			return nil, err
		} else if hit {
			if rel == nil {
				return nil, appErr.New(appErr.CodeNotFound, "no eligible release")
			}
			return rel, nil
		}
	}

	releases, err := s.releaseRepo.ListCandidates(ctx, project.ID, q.Platform, s.policy, sel)
	if err != nil {
		return nil, err
	}
	id, found := resolver.Pick(BuildCandidates(s.policy, q.Platform, releases), v)

	if cacheable {
		row := &models.Resolution{
			ProjectID:  project.ID,
			Platform:   string(q.Platform),
			AppVersion: q.RawVersion,
		}
		if found {
			row.ReleaseID = &id
		}
		if err := s.resRepo.Upsert(ctx, row); err != nil {
			// The answer is still correct; losing the memo only costs a
			// future rescan.
			logger.L().Warn("resolution cache write failed",
				zap.Uint("project_id", project.ID), zap.Error(err))
		}
	}

	if !found {
		return nil, appErr.New(appErr.CodeNotFound, "no eligible release")
	}
	for i := range releases {
		if releases[i].ID == id {
			return &releases[i], nil
		}
	}
	return nil, appErr.New(appErr.CodeInternal, "picked release missing from candidate set")
}

// lookupCache returns (release, hit, err). hit=true with a nil release is a
// memoized "no match". A clean row pointing at a release that has since
// vanished is treated as a miss so the caller recomputes.
func (s *resolutionService) lookupCache(ctx context.Context, project *models.Project, q ResolveQuery) (*models.Release, bool, error) {
	var row models.Resolution
	err := s.resRepo.GetClean(ctx, project.ID, string(q.Platform), q.RawVersion, &row)
	if err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if row.ReleaseID == nil {
		return nil, true, nil
	}
	var rel models.Release
	if err := s.releaseRepo.GetByID(ctx, *row.ReleaseID, &rel); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &rel, true, nil
}
