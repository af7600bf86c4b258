package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting"
	accountinghttp "github.com/Corner-venturo/Corner-sub009/internal/accounting/http"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/mappings"
	"github.com/Corner-venturo/Corner-sub009/internal/accounting/reports"
	"github.com/Corner-venturo/Corner-sub009/internal/app"
	closing "github.com/Corner-venturo/Corner-sub009/internal/close"
	closehttp "github.com/Corner-venturo/Corner-sub009/internal/close/http"
	"github.com/Corner-venturo/Corner-sub009/internal/observability"
	"github.com/Corner-venturo/Corner-sub009/internal/platform/cache"
	"github.com/Corner-venturo/Corner-sub009/internal/platform/db"
	"github.com/Corner-venturo/Corner-sub009/internal/shared"
	"github.com/Corner-venturo/Corner-sub009/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if cfg.DBMigrateOnStart {
		if err := db.Migrate(cfg.PGDSN); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("database migrated")
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisOpts := cache.Options{Addr: cfg.RedisAddr}
	var redisClient *redis.Client
	if client, err := cache.New(ctx, redisOpts); err != nil {
		logger.Warn("redis unavailable, statements are served uncached", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	if err := reportCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("subscribe cache invalidation", slog.Any("error", err))
	}

	var invalidator accounting.CacheInvalidator = reportCache
	var inspector *asynq.Inspector
	if redisClient != nil {
		queue := jobs.NewClient(cache.AsynqOpts(redisOpts))
		defer func() {
			if err := queue.Close(); err != nil {
				logger.Warn("queue close", slog.Any("error", err))
			}
		}()
		invalidator = jobs.RefreshingInvalidator{Cache: reportCache, Queue: queue, Logger: logger}

		inspector = asynq.NewInspector(cache.AsynqOpts(redisOpts))
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	ledgerRepo := accounting.NewRepository(dbpool)
	aggregator := accounting.NewAggregator(ledgerRepo)
	ledgerService := accounting.NewService(ledgerRepo, auditLogger, invalidator, logger)
	reportService := reports.NewService(aggregator, reportCache, logger)
	mappingService := mappings.NewService(mappings.NewRepository(dbpool), reports.DefaultConvention(), logger)

	closingService := closing.NewService(aggregator, closing.NewRepository(dbpool), auditLogger, invalidator, closing.Config{
		RetainedEarningsCode: cfg.ClosingRetainedEarningsCode,
		TxTimeout:            cfg.ClosingTxTimeout,
	}, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Pool:              dbpool,
		AccountingHandler: accountinghttp.NewHandler(logger, ledgerService, reportService, mappingService),
		CloseHandler:      closehttp.NewHandler(logger, closingService, idempotencyStore),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := idempotencyStore.Cleanup(ctx, 24*time.Hour); err != nil {
					logger.Warn("idempotency cleanup", slog.Any("error", err))
				}
			}
		}
	}()

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
