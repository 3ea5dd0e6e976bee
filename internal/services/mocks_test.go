package services

import (
	"context"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/updrift/engine/internal/models"
	"github.com/updrift/engine/internal/repository"
	"github.com/updrift/engine/internal/resolver"
)

// Mock implementations

type mockReleaseRepo struct {
	mock.Mock
}

func (m *mockReleaseRepo) Create(ctx context.Context, obj *models.Release) error {
	args := m.Called(ctx, obj)
	return args.Error(0)
}

func (m *mockReleaseRepo) GetByID(ctx context.Context, id any, dest *models.Release) error {
	args := m.Called(ctx, id, dest)
	return args.Error(0)
}

func (m *mockReleaseRepo) Update(ctx context.Context, obj *models.Release) error {
	args := m.Called(ctx, obj)
	return args.Error(0)
}

func (m *mockReleaseRepo) Delete(ctx context.Context, id any) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockReleaseRepo) GetByToken(ctx context.Context, projectID uint, token string, dest *models.Release) error {
	args := m.Called(ctx, projectID, token, dest)
	return args.Error(0)
}

func (m *mockReleaseRepo) ListByProject(ctx context.Context, projectID uint) ([]models.Release, error) {
	args := m.Called(ctx, projectID)
	if v := args.Get(0); v != nil {
		return v.([]models.Release), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReleaseRepo) ListCandidates(ctx context.Context, projectID uint, platform resolver.Platform, policy resolver.Policy, sel repository.ChannelSelector) ([]models.Release, error) {
	args := m.Called(ctx, projectID, platform, policy, sel)
	if v := args.Get(0); v != nil {
		return v.([]models.Release), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReleaseRepo) NameTaken(ctx context.Context, projectID uint, name string, excludeID uint) (bool, error) {
	args := m.Called(ctx, projectID, name, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockReleaseRepo) ReplaceChannels(ctx context.Context, releaseID uint, channelIDs []*uint) error {
	args := m.Called(ctx, releaseID, channelIDs)
	return args.Error(0)
}

func (m *mockReleaseRepo) WithTx(tx *gorm.DB) repository.ReleaseRepository { return m }

type mockResolutionRepo struct {
	mock.Mock
}

func (m *mockResolutionRepo) GetClean(ctx context.Context, projectID uint, platform, appVersion string, dest *models.Resolution) error {
	args := m.Called(ctx, projectID, platform, appVersion, dest)
	return args.Error(0)
}

func (m *mockResolutionRepo) Upsert(ctx context.Context, row *models.Resolution) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *mockResolutionRepo) MarkProjectDirty(ctx context.Context, projectID uint) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

func (m *mockResolutionRepo) DetachRelease(ctx context.Context, releaseID uint) error {
	args := m.Called(ctx, releaseID)
	return args.Error(0)
}

func (m *mockResolutionRepo) ListGroup(ctx context.Context, projectID uint, platform string) ([]models.Resolution, error) {
	args := m.Called(ctx, projectID, platform)
	if v := args.Get(0); v != nil {
		return v.([]models.Resolution), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockResolutionRepo) ApplyUpdate(ctx context.Context, rowID uint, releaseID *uint, dirty bool) error {
	args := m.Called(ctx, rowID, releaseID, dirty)
	return args.Error(0)
}

func (m *mockResolutionRepo) DirtyGroups(ctx context.Context) ([]repository.DirtyGroup, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]repository.DirtyGroup), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockResolutionRepo) ListDirtyAfter(ctx context.Context, projectID uint, platform string, afterID uint, limit int) ([]models.Resolution, error) {
	args := m.Called(ctx, projectID, platform, afterID, limit)
	if v := args.Get(0); v != nil {
		return v.([]models.Resolution), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockResolutionRepo) CountDirty(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockResolutionRepo) WithTx(tx *gorm.DB) repository.ResolutionRepository { return m }

type mockChannelRepo struct {
	mock.Mock
}

func (m *mockChannelRepo) Create(ctx context.Context, obj *models.Channel) error {
	args := m.Called(ctx, obj)
	return args.Error(0)
}

func (m *mockChannelRepo) GetByID(ctx context.Context, id any, dest *models.Channel) error {
	args := m.Called(ctx, id, dest)
	return args.Error(0)
}

func (m *mockChannelRepo) Update(ctx context.Context, obj *models.Channel) error {
	args := m.Called(ctx, obj)
	return args.Error(0)
}

func (m *mockChannelRepo) Delete(ctx context.Context, id any) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockChannelRepo) ListByProject(ctx context.Context, projectID uint) ([]models.Channel, error) {
	args := m.Called(ctx, projectID)
	if v := args.Get(0); v != nil {
		return v.([]models.Channel), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockChannelRepo) GetByName(ctx context.Context, projectID uint, name string, dest *models.Channel) error {
	args := m.Called(ctx, projectID, name, dest)
	return args.Error(0)
}

func (m *mockChannelRepo) WithTx(tx *gorm.DB) repository.ChannelRepository { return m }
