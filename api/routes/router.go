package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kairos100/swissluca-backend/api/controllers"
	subscriptioncontrollers "github.com/kairos100/swissluca-backend/api/controllers/subscriptions"
	webhookcontrollers "github.com/kairos100/swissluca-backend/api/controllers/webhooks"
	"github.com/kairos100/swissluca-backend/api/middleware"
	"github.com/kairos100/swissluca-backend/internal/offers"
	"github.com/kairos100/swissluca-backend/internal/payments"
	"github.com/kairos100/swissluca-backend/internal/profiles"
	subscriptionsvc "github.com/kairos100/swissluca-backend/internal/subscriptions"
	stripewebhook "github.com/kairos100/swissluca-backend/internal/webhooks/stripe"
	"github.com/kairos100/swissluca-backend/pkg/config"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	"github.com/kairos100/swissluca-backend/pkg/logger"
	"github.com/kairos100/swissluca-backend/pkg/redis"
)

// Deps carries everything the HTTP surface is built from. Redis and Metrics
// are optional.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Redis         *redis.Client
	Offers        offers.Service
	Activations   controllers.ActivationService
	Payments      payments.Service
	Confirmer     controllers.PaymentConfirmer
	Profiles      profiles.Service
	Subscriptions subscriptionsvc.Service
	Stripe        webhookcontrollers.EventVerifier
	Webhooks      webhookcontrollers.StripeWebhookService
	WebhookGuard  stripewebhook.EventGuard
	Metrics       http.Handler
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	var (
		limiter    redis.RateLimiter
		idemStore  redis.IdempotencyStore
		redisProbe controllers.Pinger
	)
	if d.Redis != nil {
		limiter, idemStore, redisProbe = d.Redis, d.Redis, d.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	paymentPolicy := middleware.RateLimitPolicy{
		Name:   "payments",
		Limit:  cfg.RateLimit.PaymentLimit,
		Window: cfg.RateLimit.PaymentWindow,
	}
	paymentLimit := middleware.RateLimit(paymentPolicy, limiter, logg)
	legacyPolicy := paymentPolicy
	legacyPolicy.Name = "legacy"
	legacyLimit := middleware.RateLimit(legacyPolicy, limiter, logg)

	// Route claims every method on /health, so the bare health check lives inside it.
	r.Route("/health", func(r chi.Router) {
		r.Get("/", controllers.Health(nil))
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    d.DB,
			"redis": redisProbe,
		}))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	// Wire-compatible endpoints of the original web client.
	r.Route("/api", func(r chi.Router) {
		r.With(legacyLimit).Post("/create-payment-intent", controllers.CreatePaymentIntent(d.Payments, logg))
		r.Get("/payment-status/{paymentIntentID}", controllers.PaymentStatus(d.Payments, logg))
		r.Post("/webhook", webhookcontrollers.StripeWebhook(d.Webhooks, d.Stripe, d.WebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/offers", controllers.ListOffers(d.Offers, logg))
		r.Get("/offers/{offerID}", controllers.GetOffer(d.Offers, logg))
		r.Get("/flash-deals", controllers.ListFlashDeals(d.Offers, logg))
		r.Get("/map/pins", controllers.MapPins(d.Offers, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idemStore, logg))

			r.Get("/me", controllers.Profile(d.Profiles, logg))
			r.Get("/me/subscription", subscriptioncontrollers.Fetch(d.Subscriptions, logg))
			r.With(paymentLimit).Post("/subscriptions/checkout", subscriptioncontrollers.Checkout(d.Subscriptions, logg))

			r.Get("/offers/{offerID}/activation", controllers.ActivationStatus(d.Activations, logg, "offerID"))
			r.Get("/flash-deals/{dealID}/activation", controllers.ActivationStatus(d.Activations, logg, "dealID"))
			r.Get("/activations", controllers.ActivationHistory(d.Activations, logg))
			r.Get("/activations/locked", controllers.LockedOffers(d.Activations, logg))
			r.Get("/payments", controllers.PaymentHistory(d.Payments, logg))
			r.Post("/payments/{paymentIntentID}/confirm", controllers.PaymentConfirm(d.Confirmer, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAccess(d.Subscriptions, logg))
				r.Use(paymentLimit)
				r.Post("/offers/{offerID}/activate", controllers.ActivateOffer(d.Activations, logg))
				r.Post("/flash-deals/{dealID}/activate", controllers.ActivateFlashDeal(d.Activations, logg))
				r.Post("/flash-deals/{dealID}/quick-activate", controllers.QuickActivateFlashDeal(d.Activations, logg))
			})
		})
	})

	r.Route("/api/partner/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RolePartner, enums.RoleAdmin))
		r.Get("/flash-deals", controllers.PartnerListFlashDeals(d.Offers, logg))
		r.Get("/places", controllers.PartnerPlaceSuggestions(d.Offers, logg))
		// inline so the full route pattern is resolved before the lookup
		r.With(middleware.Idempotency(idemStore, logg)).Post("/flash-deals", controllers.PartnerCreateFlashDeal(d.Offers, logg))
	})

	return r
}
