package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-assist/meridian/internal/app"
	"github.com/meridian-assist/meridian/internal/platform/cache"
	"github.com/meridian-assist/meridian/internal/platform/db"
	"github.com/meridian-assist/meridian/internal/platform/objstore"
	"github.com/meridian-assist/meridian/internal/reporting"
	"github.com/meridian-assist/meridian/internal/trash"
	"github.com/meridian-assist/meridian/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, dashboards will rebuild uncached", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	store, err := objstore.NewMinioStore(ctx, objstore.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		Secure:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Error("connect object storage", slog.Any("error", err))
		os.Exit(1)
	}

	trashService := trash.NewService(trash.NewRepository(pool), store, logger)

	reportingService := reporting.NewService(
		reporting.NewRepository(pool),
		reporting.NewCache(redisClient, cfg.ReportCacheTTL),
	)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTrashSweep, Handler: jobs.HandleTrashSweep(trashService, logger)},
			{Type: jobs.TaskReportWarmup, Handler: jobs.HandleReportWarmup(reportingService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.TrashSweepCron, Task: jobs.NewTrashSweepTask()},
			{Spec: cfg.ReportWarmupCron, Task: jobs.NewReportWarmupTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started",
		slog.String("trash_sweep", cfg.TrashSweepCron),
		slog.String("report_warmup", cfg.ReportWarmupCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shutdown complete")
}
