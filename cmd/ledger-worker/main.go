package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/mappings"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/reports"
	"github.com/Corner-venturo/Corner-sub009/internal/app"
	jobmetrics "github.com/Corner-venturo/Corner-sub009/internal/jobs"
	"github.com/Corner-venturo/Corner-sub009/internal/platform/cache"
	"github.com/Corner-venturo/Corner-sub009/internal/platform/db"
	"github.com/Corner-venturo/Corner-sub009/jobs"
)

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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := cache.Options{Addr: cfg.RedisAddr}
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	ledgerRepo := accounting.NewRepository(pool)
	aggregator := accounting.NewAggregator(ledgerRepo)
	reportService := reports.NewService(aggregator, reports.NewCache(redisClient, cfg.ReportCacheTTL), logger)
	mappingService := mappings.NewService(mappings.NewRepository(pool), reports.DefaultConvention(), logger)
	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)

	integrityJob := jobs.NewGLIntegrityJob(ledgerRepo, aggregator, logger, metrics)
	warmupJob := jobs.NewReportWarmupJob(ledgerRepo, reportService, mappingService, logger, metrics)

	integrityTask, err := jobs.NewGLIntegrityTask(jobs.ScopePayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewReportWarmupTask(jobs.ScopePayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cache.AsynqOpts(redisOpts),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskGLIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskReportWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.CronGLIntegrity, Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.CronReportWarmup, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	logger.Info("starting ledger worker",
		slog.String("gl_integrity", cfg.CronGLIntegrity),
		slog.String("report_warmup", cfg.CronReportWarmup))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
