package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/updrift/engine/internal/queue/tasks"
	"github.com/updrift/engine/internal/repository"
	"github.com/updrift/engine/internal/resolver"
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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}

	db, err := database.OpenPostgres(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}

	releaseRepo := repository.NewReleaseRepository(db)
	resRepo := repository.NewResolutionRepository(db)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.AsynqConcurrency,
	})

	handler := tasks.NewReindexTaskHandler(policy, releaseRepo, resRepo, cfg.ReindexBatchSize)
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeReindex, handler.HandleReindex)

	// The sweep runs on a fixed cadence; dirty rows accumulate between runs
	// and each run drains them.
	scheduler := asynq.NewScheduler(redisOpt, nil)
	cronspec := fmt.Sprintf("@every %s", cfg.ReindexInterval)
	if _, err := scheduler.Register(cronspec, tasks.NewReindexTask()); err != nil {
		log.Fatal("register reindex schedule failed", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("asynq worker starting",
			zap.Int("concurrency", cfg.AsynqConcurrency),
			zap.Duration("reindex_interval", cfg.ReindexInterval))
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()
	go func() {
		if err := scheduler.Run(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("worker stopped with error", zap.Error(err))
	}

	scheduler.Shutdown()
	srv.Shutdown()
}
