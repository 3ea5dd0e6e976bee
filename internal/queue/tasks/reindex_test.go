package tasks

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/updrift/engine/internal/models"
	"github.com/updrift/engine/internal/repository"
	"github.com/updrift/engine/internal/resolver"
	"github.com/updrift/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	_, err := logger.Init("info", "json")
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

// Mock implementations

type mockReleaseRepo struct {
	mock.Mock
}

func (m *mockReleaseRepo) Create(ctx context.Context, obj *models.Release) error {
	return m.Called(ctx, obj).Error(0)
}

func (m *mockReleaseRepo) GetByID(ctx context.Context, id any, dest *models.Release) error {
	return m.Called(ctx, id, dest).Error(0)
}

func (m *mockReleaseRepo) Update(ctx context.Context, obj *models.Release) error {
	return m.Called(ctx, obj).Error(0)
}

func (m *mockReleaseRepo) Delete(ctx context.Context, id any) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockReleaseRepo) GetByToken(ctx context.Context, projectID uint, token string, dest *models.Release) error {
	return m.Called(ctx, projectID, token, dest).Error(0)
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
	return m.Called(ctx, releaseID, channelIDs).Error(0)
}

func (m *mockReleaseRepo) WithTx(tx *gorm.DB) repository.ReleaseRepository { return m }

type mockResolutionRepo struct {
	mock.Mock
}

func (m *mockResolutionRepo) GetClean(ctx context.Context, projectID uint, platform, appVersion string, dest *models.Resolution) error {
	return m.Called(ctx, projectID, platform, appVersion, dest).Error(0)
}

func (m *mockResolutionRepo) Upsert(ctx context.Context, row *models.Resolution) error {
	return m.Called(ctx, row).Error(0)
}

func (m *mockResolutionRepo) MarkProjectDirty(ctx context.Context, projectID uint) error {
	return m.Called(ctx, projectID).Error(0)
}

func (m *mockResolutionRepo) DetachRelease(ctx context.Context, releaseID uint) error {
	return m.Called(ctx, releaseID).Error(0)
}

func (m *mockResolutionRepo) ListGroup(ctx context.Context, projectID uint, platform string) ([]models.Resolution, error) {
	args := m.Called(ctx, projectID, platform)
	if v := args.Get(0); v != nil {
		return v.([]models.Resolution), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockResolutionRepo) ApplyUpdate(ctx context.Context, rowID uint, releaseID *uint, dirty bool) error {
	return m.Called(ctx, rowID, releaseID, dirty).Error(0)
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

func u64(v uint64) *uint64 { return &v }

func dirtyRow(id uint, version string) models.Resolution {
	return models.Resolution{
		ID: id, ProjectID: 7, Platform: "android", AppVersion: version, NeedsReindex: true,
	}
}

func TestReindexNothingDirty(t *testing.T) {
	releaseRepo := &mockReleaseRepo{}
	resRepo := &mockResolutionRepo{}
	resRepo.On("DirtyGroups", mock.Anything).Return([]repository.DirtyGroup{}, nil)

	h := NewReindexTaskHandler(resolver.PolicyRange, releaseRepo, resRepo, 100)
	require.NoError(t, h.HandleReindex(context.Background(), NewReindexTask()))
	releaseRepo.AssertNotCalled(t, "ListCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReindexRecomputesDirtyRows(t *testing.T) {
	releaseRepo := &mockReleaseRepo{}
	resRepo := &mockResolutionRepo{}

	resRepo.On("DirtyGroups", mock.Anything).
		Return([]repository.DirtyGroup{{ProjectID: 7, Platform: "android"}}, nil)

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	catalog := []models.Release{
		{ID: 2, Name: "B", ProjectID: 7, AndroidAvailable: true, AndroidMin: u64(15), CreatedAt: t1.Add(time.Hour)},
		{ID: 1, Name: "A", ProjectID: 7, AndroidAvailable: true, AndroidMin: u64(5), AndroidMax: u64(15), CreatedAt: t1},
	}
	releaseRepo.On("ListCandidates", mock.Anything, uint(7), resolver.PlatformAndroid, resolver.PolicyRange, repository.ChannelSelector{}).
		Return(catalog, nil)

	rows := []models.Resolution{dirtyRow(10, "10"), dirtyRow(11, "20"), dirtyRow(12, "3")}
	resRepo.On("ListDirtyAfter", mock.Anything, uint(7), "android", uint(0), 100).Return(rows, nil)
	resRepo.On("ListDirtyAfter", mock.Anything, uint(7), "android", uint(12), 100).Return([]models.Resolution{}, nil)

	resRepo.On("ApplyUpdate", mock.Anything, uint(10), mock.MatchedBy(func(id *uint) bool { return id != nil && *id == 1 }), false).Return(nil)
	resRepo.On("ApplyUpdate", mock.Anything, uint(11), mock.MatchedBy(func(id *uint) bool { return id != nil && *id == 2 }), false).Return(nil)
	resRepo.On("ApplyUpdate", mock.Anything, uint(12), mock.MatchedBy(func(id *uint) bool { return id == nil }), false).Return(nil)

	h := NewReindexTaskHandler(resolver.PolicyRange, releaseRepo, resRepo, 100)
	require.NoError(t, h.HandleReindex(context.Background(), NewReindexTask()))
	resRepo.AssertExpectations(t)
	releaseRepo.AssertNumberOfCalls(t, "ListCandidates", 1)
}

func TestReindexSkipsUnparseableVersion(t *testing.T) {
	releaseRepo := &mockReleaseRepo{}
	resRepo := &mockResolutionRepo{}

	resRepo.On("DirtyGroups", mock.Anything).
		Return([]repository.DirtyGroup{{ProjectID: 7, Platform: "android"}}, nil)
	releaseRepo.On("ListCandidates", mock.Anything, uint(7), resolver.PlatformAndroid, resolver.PolicyRange, repository.ChannelSelector{}).
		Return([]models.Release{{ID: 1, Name: "A", ProjectID: 7, AndroidAvailable: true, CreatedAt: time.Now()}}, nil)

	rows := []models.Resolution{dirtyRow(10, "1.2.3-garbage"), dirtyRow(11, "30")}
	resRepo.On("ListDirtyAfter", mock.Anything, uint(7), "android", uint(0), 100).Return(rows, nil)
	resRepo.On("ListDirtyAfter", mock.Anything, uint(7), "android", uint(11), 100).Return([]models.Resolution{}, nil)
	resRepo.On("ApplyUpdate", mock.Anything, uint(11), mock.MatchedBy(func(id *uint) bool { return id != nil && *id == 1 }), false).Return(nil)

	h := NewReindexTaskHandler(resolver.PolicyRange, releaseRepo, resRepo, 100)
	require.NoError(t, h.HandleReindex(context.Background(), NewReindexTask()))
	resRepo.AssertNotCalled(t, "ApplyUpdate", mock.Anything, uint(10), mock.Anything, mock.Anything)
}
