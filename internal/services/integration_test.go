package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/updrift/engine/internal/models"
	"github.com/updrift/engine/internal/queue/tasks"
	"github.com/updrift/engine/internal/repository"
	"github.com/updrift/engine/internal/resolver"
	"github.com/updrift/engine/internal/services"
	"github.com/updrift/engine/internal/storage"
	appErr "github.com/updrift/engine/pkg/errors"
)

func u64(v uint64) *uint64 { return &v }

type testEnv struct {
	db         *gorm.DB
	projectSvc services.ProjectService
	channelSvc services.ChannelService
	releaseSvc services.ReleaseService
	resolveSvc services.ResolutionService
	resRepo    repository.ResolutionRepository
	reindex    *tasks.ReindexTaskHandler
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	r := require.New(t)
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("updrift_test"),
		tcpostgres.WithUsername("updrift"),
		tcpostgres.WithPassword("updrift"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(time.Minute)),
	)
	r.NoError(err, "failed to start postgres container")
	t.Cleanup(func() {
		r.NoError(testcontainers.TerminateContainer(pgContainer))
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	r.NoError(err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	r.NoError(err)
	r.NoError(db.AutoMigrate(
		&models.Project{}, &models.Channel{}, &models.Release{},
		&models.ReleaseChannel{}, &models.Resolution{},
	))

	store, err := storage.NewLocalStore(t.TempDir())
	r.NoError(err)

	projectRepo := repository.NewProjectRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	releaseRepo := repository.NewReleaseRepository(db)
	resRepo := repository.NewResolutionRepository(db)

	policy := resolver.PolicyRange
	return &testEnv{
		db:         db,
		projectSvc: services.NewProjectService(projectRepo),
		channelSvc: services.NewChannelService(db, channelRepo, resRepo),
		releaseSvc: services.NewReleaseService(db, policy, releaseRepo, channelRepo, resRepo, store),
		resolveSvc: services.NewResolutionService(policy, releaseRepo, resRepo, channelRepo),
		resRepo:    resRepo,
		reindex:    tasks.NewReindexTaskHandler(policy, releaseRepo, resRepo, 100),
	}
}

func (e *testEnv) publish(t *testing.T, project *models.Project, input *services.CreateReleaseInput) *models.Release {
	t.Helper()
	input.Bundle = strings.NewReader("bundle bytes for " + input.Name)
	rel, err := e.releaseSvc.Create(context.Background(), project, input)
	require.NoError(t, err)
	// Postgres keeps microsecond timestamps; spacing publishes out keeps
	// created_at ordering deterministic.
	time.Sleep(20 * time.Millisecond)
	return rel
}

func (e *testEnv) resolve(t *testing.T, project *models.Project, build, channel string) (*models.Release, error) {
	t.Helper()
	return e.resolveSvc.Resolve(context.Background(), project, services.ResolveQuery{
		Platform: resolver.PlatformAndroid, RawVersion: build, ChannelName: channel,
	})
}

func (e *testEnv) snapshotCache(t *testing.T, projectID uint) map[string]*uint {
	t.Helper()
	rows, err := e.resRepo.ListGroup(context.Background(), projectID, "android")
	require.NoError(t, err)
	out := make(map[string]*uint, len(rows))
	for i := range rows {
		require.False(t, rows[i].NeedsReindex, "expected clean row for %s", rows[i].AppVersion)
		out[rows[i].AppVersion] = rows[i].ReleaseID
	}
	return out
}

func TestResolutionLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env := setupTestEnv(t)
	ctx := context.Background()

	project, err := env.projectSvc.Create(ctx, &services.CreateProjectInput{Name: "acme-app"})
	require.NoError(t, err)
	require.Len(t, project.Token, 21)
	require.Contains(t, project.PublicKey, "PUBLIC KEY")

	relA := env.publish(t, project, &services.CreateReleaseInput{
		Name:             "1.0.0",
		AndroidAvailable: true, AndroidMin: u64(5), AndroidMax: u64(15),
	})
	relB := env.publish(t, project, &services.CreateReleaseInput{
		Name:             "2.0.0",
		AndroidAvailable: true, AndroidMin: u64(15),
	})
	require.NotEmpty(t, relA.Signature)
	require.NotEqual(t, relA.Signature, relB.Signature)

	// Build 10 lands in A's window, 20 in B's, 3 in neither.
	got, err := env.resolve(t, project, "10", "")
	require.NoError(t, err)
	require.Equal(t, relA.ID, got.ID)

	got, err = env.resolve(t, project, "20", "")
	require.NoError(t, err)
	require.Equal(t, relB.ID, got.ID)

	_, err = env.resolve(t, project, "3", "")
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	// All three answers are memoized clean, including the no-match.
	cache := env.snapshotCache(t, project.ID)
	require.Len(t, cache, 3)
	require.Equal(t, relA.ID, *cache["10"])
	require.Equal(t, relB.ID, *cache["20"])
	require.Nil(t, cache["3"])

	// Publishing an unbounded release rewrites every row it is eligible
	// for, in place and clean, without a sweep.
	relC := env.publish(t, project, &services.CreateReleaseInput{
		Name:             "3.0.0",
		AndroidAvailable: true,
	})
	cache = env.snapshotCache(t, project.ID)
	require.Equal(t, relC.ID, *cache["10"])
	require.Equal(t, relC.ID, *cache["20"])
	require.Equal(t, relC.ID, *cache["3"])

	// Deleting the current winner detaches its rows; the next query
	// recomputes and re-memoizes.
	require.NoError(t, env.releaseSvc.Delete(ctx, project, relC.Token))
	got, err = env.resolve(t, project, "10", "")
	require.NoError(t, err)
	require.Equal(t, relA.ID, got.ID)

	// Sweep the remaining dirty rows, then verify a full forced recompute
	// changes nothing: the cache agrees with the catalog.
	require.NoError(t, env.reindex.HandleReindex(ctx, tasks.NewReindexTask()))
	before := env.snapshotCache(t, project.ID)

	require.NoError(t, env.resRepo.MarkProjectDirty(ctx, project.ID))
	require.NoError(t, env.reindex.HandleReindex(ctx, tasks.NewReindexTask()))
	after := env.snapshotCache(t, project.ID)

	require.Equal(t, len(before), len(after))
	for version, want := range before {
		if want == nil {
			require.Nil(t, after[version])
			continue
		}
		require.NotNil(t, after[version])
		require.Equal(t, *want, *after[version], "version %s", version)
	}

	dirty, err := env.resRepo.CountDirty(ctx)
	require.NoError(t, err)
	require.Zero(t, dirty)
}

func TestChannelScoping(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env := setupTestEnv(t)
	ctx := context.Background()

	project, err := env.projectSvc.Create(ctx, &services.CreateProjectInput{Name: "acme-app"})
	require.NoError(t, err)
	_, err = env.channelSvc.Create(ctx, project, "beta")
	require.NoError(t, err)

	stable := env.publish(t, project, &services.CreateReleaseInput{
		Name:             "1.0.0",
		AndroidAvailable: true,
	})
	beta := env.publish(t, project, &services.CreateReleaseInput{
		Name:             "2.0.0-beta",
		AndroidAvailable: true,
		Channels:         []string{"beta"},
	})

	// The default query never sees the channel-bound release.
	got, err := env.resolve(t, project, "10", "")
	require.NoError(t, err)
	require.Equal(t, stable.ID, got.ID)

	// The beta query sees both and the newer beta release wins.
	got, err = env.resolve(t, project, "10", "beta")
	require.NoError(t, err)
	require.Equal(t, beta.ID, got.ID)

	// Unknown channels are a client error, not a no-match.
	_, err = env.resolve(t, project, "10", "nightly")
	require.True(t, appErr.IsCode(err, appErr.CodeInvalid))

	// Dropping the channel makes its release unreachable everywhere.
	require.NoError(t, env.channelSvc.Delete(ctx, project, "beta"))
	_, err = env.resolve(t, project, "10", "beta")
	require.True(t, appErr.IsCode(err, appErr.CodeInvalid))
}
