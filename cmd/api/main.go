package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kairos100/swissluca-backend/api/routes"
	"github.com/kairos100/swissluca-backend/internal/app"
	stripewebhook "github.com/kairos100/swissluca-backend/internal/webhooks/stripe"
	"github.com/kairos100/swissluca-backend/pkg/config"
	"github.com/kairos100/swissluca-backend/pkg/instance"
	"github.com/kairos100/swissluca-backend/pkg/logger"
)

const (
	// Stripe retries undelivered events for up to three days.
	webhookGuardTTL      = 72 * time.Hour
	webhookGuardCapacity = 50000
	shutdownTimeout      = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	var guard stripewebhook.EventGuard
	if application.Redis != nil {
		guard, err = stripewebhook.NewIdempotencyGuard(application.Redis, webhookGuardTTL, "stripe-webhook")
	} else {
		guard, err = stripewebhook.NewMemoryGuard(webhookGuardCapacity)
	}
	if err != nil {
		logg.Error(ctx, "failed to create webhook guard", err)
		os.Exit(1)
	}

	go func() {
		if err := application.Machine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "activation machine stopped unexpectedly", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            application.DB,
			Redis:         application.Redis,
			Offers:        application.Offers,
			Activations:   application.Machine,
			Payments:      application.Payments,
			Confirmer:     application.Dispatcher,
			Profiles:      application.Profiles,
			Subscriptions: application.Subscriptions,
			Stripe:        application.Stripe,
			Webhooks:      application.Dispatcher,
			WebhookGuard:  guard,
			Metrics:       promhttp.HandlerFor(application.Registry, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
}
