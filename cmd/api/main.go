package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/updrift/engine/internal/api"
	"github.com/updrift/engine/internal/api/handlers"
	"github.com/updrift/engine/internal/repository"
	"github.com/updrift/engine/internal/resolver"
	"github.com/updrift/engine/internal/services"
	"github.com/updrift/engine/internal/storage"
	"github.com/updrift/engine/pkg/config"
	"github.com/updrift/engine/pkg/database"
	"github.com/updrift/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	policy, err := resolver.ParsePolicy(cfg.EligibilityPolicy)
	if err != nil {
		log.Fatal("invalid eligibility policy", zap.String("policy", cfg.EligibilityPolicy))
	}

	log.Info("starting updrift api",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("policy", string(policy)),
	)

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	store, err := storage.NewLocalStore(cfg.StorageDir)
	if err != nil {
		log.Fatal("failed to open bundle store", zap.Error(err))
	}

	projectRepo := repository.NewProjectRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	releaseRepo := repository.NewReleaseRepository(db)
	resRepo := repository.NewResolutionRepository(db)

	projectSvc := services.NewProjectService(projectRepo)
	channelSvc := services.NewChannelService(db, channelRepo, resRepo)
	releaseSvc := services.NewReleaseService(db, policy, releaseRepo, channelRepo, resRepo, store)
	resolveSvc := services.NewResolutionService(policy, releaseRepo, resRepo, channelRepo)

	validate := validator.New()

	router := api.NewRouter(api.Dependencies{
		HMACSecret:      []byte(cfg.JWTSecret),
		HealthHandler:   handlers.NewHealthHandler(db),
		BundlesHandler:  handlers.NewBundlesHandler(projectSvc, resolveSvc, releaseSvc, store),
		ProjectsHandler: handlers.NewProjectsHandler(projectSvc, validate),
		ChannelsHandler: handlers.NewChannelsHandler(projectSvc, channelSvc),
		ReleasesHandler: handlers.NewReleasesHandler(projectSvc, releaseSvc),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
