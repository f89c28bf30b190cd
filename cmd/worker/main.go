package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-dms/meridian-dms/internal/app"
	"github.com/meridian-dms/meridian-dms/internal/invoice"
	jobmetrics "github.com/meridian-dms/meridian-dms/internal/jobs"
	"github.com/meridian-dms/meridian-dms/internal/manifest"
	"github.com/meridian-dms/meridian-dms/internal/party"
	"github.com/meridian-dms/meridian-dms/internal/reconcile"
	"github.com/meridian-dms/meridian-dms/internal/sequence"
	"github.com/meridian-dms/meridian-dms/jobs"
)

// reconcileRunner adapts the syncer to the jobs.Reconciler contract.
type reconcileRunner struct {
	syncer *reconcile.Syncer
}

func (r reconcileRunner) Run(ctx context.Context) error {
	_, err := r.syncer.SyncAll(ctx, nil)
	return err
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	seq := sequence.NewRepository(pool)
	partyRepo := party.NewRepository(pool)
	invoiceRepo := invoice.NewRepository(pool)

	manifestRepo := manifest.NewRepository(pool)
	manifestAdapter := invoice.NewManifestAdapter(invoiceRepo, partyRepo)
	statsCache := manifest.NewStatsCache(redisClient, cfg.ManifestStatsTTL)
	manifestService := manifest.NewService(manifestRepo, manifestAdapter, seq, statsCache, logger)

	jobMetrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)
	syncer := reconcile.NewSyncer(invoiceRepo, manifestRepo, manifestService, jobMetrics, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskManifestSync, Handler: jobs.NewManifestSyncHandler(manifestService, jobMetrics, logger)},
			{Type: jobs.TaskReconcileRun, Handler: jobs.NewReconcileRunHandler(reconcileRunner{syncer: syncer}, jobMetrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReconcileCron, Task: jobs.NewReconcileRunTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
