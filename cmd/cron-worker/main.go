package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kairos100/swissluca-backend/internal/app"
	"github.com/kairos100/swissluca-backend/internal/cron"
	"github.com/kairos100/swissluca-backend/internal/payments"
	"github.com/kairos100/swissluca-backend/pkg/config"
	"github.com/kairos100/swissluca-backend/pkg/instance"
	"github.com/kairos100/swissluca-backend/pkg/logger"
	"github.com/kairos100/swissluca-backend/pkg/metrics"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap application", err)
		os.Exit(1)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logg.Error(context.Background(), "error closing application", err)
		}
	}()

	var lock cron.Lock = &cron.LocalLock{}
	if application.Redis != nil {
		lock, err = cron.NewRedisLock(application.Redis, application.Redis.LockKey("cron-worker"), cfg.Cron.LockTTL)
		if err != nil {
			logg.Error(ctx, "failed to create cron lock", err)
			os.Exit(1)
		}
	}

	expiry, err := cron.NewSubscriptionExpiryJob(cron.SubscriptionExpiryJobParams{
		Logger:    logg,
		Profiles:  application.ProfileRepo,
		BatchSize: cfg.Cron.ExpiryBatchSize,
		Now:       time.Now,
	})
	if err != nil {
		logg.Error(ctx, "failed to create subscription expiry job", err)
		os.Exit(1)
	}

	reconcile, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
		Logger:   logg,
		Payments: application.PaymentRepo,
		Gateway:  application.Gateway,
		Handle: func(ctx context.Context, out payments.Outcome) error {
			_, err := application.Dispatcher.HandleOutcome(ctx, out)
			return err
		},
		Limit:    cfg.Cron.ReconcileLimit,
		MinAge:   cfg.Cron.ReconcileMinAge,
		Lookback: cfg.Cron.ReconcileLookback,
		Now:      time.Now,
	})
	if err != nil {
		logg.Error(ctx, "failed to create payment reconcile job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Jobs:       []cron.Job{expiry, reconcile},
		Lock:       lock,
		Metrics:    metrics.NewJobMetrics(application.Registry),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
