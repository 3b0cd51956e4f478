// Package app assembles the long-lived services shared by the api and
// cron-worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/kairos100/swissluca-backend/internal/activation"
	"github.com/kairos100/swissluca-backend/internal/countdown"
	"github.com/kairos100/swissluca-backend/internal/events"
	"github.com/kairos100/swissluca-backend/internal/offers"
	"github.com/kairos100/swissluca-backend/internal/payments"
	"github.com/kairos100/swissluca-backend/internal/profiles"
	"github.com/kairos100/swissluca-backend/internal/subscriptions"
	stripewebhook "github.com/kairos100/swissluca-backend/internal/webhooks/stripe"
	"github.com/kairos100/swissluca-backend/pkg/config"
	"github.com/kairos100/swissluca-backend/pkg/db"
	"github.com/kairos100/swissluca-backend/pkg/logger"
	"github.com/kairos100/swissluca-backend/pkg/maps"
	"github.com/kairos100/swissluca-backend/pkg/metrics"
	"github.com/kairos100/swissluca-backend/pkg/migrate"
	pkgpubsub "github.com/kairos100/swissluca-backend/pkg/pubsub"
	"github.com/kairos100/swissluca-backend/pkg/redis"
	pkgstripe "github.com/kairos100/swissluca-backend/pkg/stripe"
)

// App holds every wired dependency. Redis and PubSub stay nil when they are
// not configured.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry

	DB     *db.Client
	Redis  *redis.Client
	PubSub *pkgpubsub.Client
	Stripe *pkgstripe.Client

	OfferRepo   *offers.Repository
	PaymentRepo *payments.Repository
	ProfileRepo *profiles.Repository

	Gateway       payments.Gateway
	Offers        offers.Service
	Payments      payments.Service
	Profiles      profiles.Service
	Subscriptions subscriptions.Service
	Machine       *activation.Machine
	Dispatcher    *stripewebhook.Service
	Publisher     events.Publisher
}

// New connects the stores and builds the domain services.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logg,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	var err error
	a.DB, err = db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, a.DB); err != nil {
		return nil, a.fail(fmt.Errorf("run dev migrations: %w", err))
	}

	if cfg.Redis.Enabled() {
		a.Redis, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, a.fail(fmt.Errorf("bootstrap redis: %w", err))
		}
	} else {
		logg.Warn(ctx, "redis not configured, using in-process idempotency and locks")
	}

	a.Stripe, err = pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return nil, a.fail(fmt.Errorf("bootstrap stripe: %w", err))
	}

	if pkgpubsub.Enabled(cfg.GCP, cfg.PubSub) {
		a.PubSub, err = pkgpubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, a.fail(fmt.Errorf("bootstrap pubsub: %w", err))
		}
		a.Publisher, err = events.NewPubSubPublisher(a.PubSub.DomainPublisher())
		if err != nil {
			return nil, a.fail(err)
		}
	} else {
		a.Publisher = events.NewLogPublisher(logg)
	}

	if err := a.buildServices(cfg, logg); err != nil {
		return nil, a.fail(err)
	}
	return a, nil
}

func (a *App) buildServices(cfg *config.Config, logg *logger.Logger) error {
	clock := countdown.SystemClock{}
	gormDB := a.DB.DB()

	a.OfferRepo = offers.NewRepository(gormDB)
	a.PaymentRepo = payments.NewRepository(gormDB)
	a.ProfileRepo = profiles.NewRepository(gormDB)

	gateway, err := payments.NewStripeGateway(a.Stripe)
	if err != nil {
		return err
	}
	a.Gateway = gateway

	var places offers.PlaceResolver
	if cfg.GoogleMaps.APIKey != "" {
		mapsClient, err := maps.NewClient(cfg.GoogleMaps.APIKey)
		if err != nil {
			return fmt.Errorf("bootstrap maps: %w", err)
		}
		places = mapsClient
	}

	if a.Offers, err = offers.NewService(offers.ServiceParams{
		Repo:     a.OfferRepo,
		Places:   places,
		Clock:    clock,
		Location: cfg.App.Location(),
	}); err != nil {
		return err
	}
	if a.Payments, err = payments.NewService(payments.ServiceParams{Gateway: gateway, Repo: a.PaymentRepo}); err != nil {
		return err
	}
	if a.Profiles, err = profiles.NewService(profiles.ServiceParams{
		Repo:        a.ProfileRepo,
		Clock:       clock,
		TrialPeriod: cfg.Subscription.TrialPeriod(),
	}); err != nil {
		return err
	}
	if a.Subscriptions, err = subscriptions.NewService(subscriptions.ServiceParams{
		Profiles: a.ProfileRepo,
		Payments: a.PaymentRepo,
		Gateway:  gateway,
		Tx:       a.DB,
		Clock:    clock,
		Logger:   logg,
		Config:   cfg.Subscription,
		Currency: cfg.Activation.Currency,
	}); err != nil {
		return err
	}

	activationMetrics := metrics.NewActivationMetrics(a.Registry)
	if a.Machine, err = activation.NewMachine(activation.Params{
		Catalog:   a.Offers,
		Gateway:   gateway,
		Profiles:  a.ProfileRepo,
		Offers:    a.OfferRepo,
		Payments:  a.PaymentRepo,
		Tx:        a.DB,
		Clock:     clock,
		Publisher: a.Publisher,
		Metrics:   activationMetrics,
		Logger:    logg,
		Config:    cfg.Activation,
		Location:  cfg.App.Location(),
	}); err != nil {
		return err
	}

	a.Dispatcher, err = stripewebhook.NewService(stripewebhook.ServiceParams{
		Activations:   a.Machine,
		Subscriptions: a.Subscriptions,
		Gateway:       gateway,
		Publisher:     a.Publisher,
		Metrics:       activationMetrics,
		Clock:         clock,
		Logger:        logg,
	})
	return err
}

// Close releases every connection the app opened.
func (a *App) Close() error {
	var err error
	if a.PubSub != nil {
		err = multierr.Append(err, a.PubSub.Close())
	}
	if a.Redis != nil {
		err = multierr.Append(err, a.Redis.Close())
	}
	if a.DB != nil {
		err = multierr.Append(err, a.DB.Close())
	}
	return err
}

func (a *App) fail(err error) error {
	return multierr.Append(err, a.Close())
}
