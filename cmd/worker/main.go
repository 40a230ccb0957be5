package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/hugwawi/hugwawi-admin/internal/app"
	"github.com/hugwawi/hugwawi-admin/internal/contacttypes"
	"github.com/hugwawi/hugwawi-admin/internal/directory"
	"github.com/hugwawi/hugwawi-admin/internal/platform/cache"
	"github.com/hugwawi/hugwawi-admin/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient := cache.New(ctx, cfg.RedisAddr, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	dirClient, err := directory.NewClient(directory.Options{
		BaseURL:  cfg.DirectoryBaseURL,
		APIKey:   cfg.DirectoryAPIKey,
		Timeout:  cfg.DirectoryTimeout,
		RetryMax: cfg.DirectoryRetryMax,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("init backend client", slog.Any("error", err))
		os.Exit(1)
	}

	contactTypes := contacttypes.NewCache(dirClient, redisClient, cfg.ContactTypesTTL, logger)

	warmupJob := jobs.NewContactTypesWarmupJob(contactTypes, logger, nil)

	warmupTask, err := jobs.NewContactTypesWarmupTask(jobs.ContactTypesWarmupPayload{Reason: "scheduled"})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskContactTypesWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 5 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
