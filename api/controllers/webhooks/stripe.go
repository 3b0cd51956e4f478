package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/kairos100/swissluca-backend/api/responses"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/logger"
)

// Stripe caps event payloads well below this.
const maxWebhookBytes = 64 << 10

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// EventVerifier checks the Stripe-Signature header and decodes the event.
type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

var received = map[string]bool{"received": true}

// StripeWebhook verifies, deduplicates and dispatches gateway events.
// Verification failures answer 400 with a plain text "Webhook Error: ..."
// body. A processing failure un-marks the event so Stripe's retry is handled.
func StripeWebhook(svc StripeWebhookService, verifier EventVerifier, guard eventGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || verifier == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes+1))
		if err == nil && len(payload) > maxWebhookBytes {
			err = errors.New("payload too large")
		}
		if err != nil {
			rejectEvent(ctx, logg, w, err)
			return
		}
		event, err := verifier.ConstructEvent(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			rejectEvent(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)})
		}

		seen, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook dedupe"))
			return
		}
		if seen {
			if logg != nil {
				logg.Debug(ctx, "stripe.event_duplicate")
			}
			responses.WriteJSON(w, http.StatusOK, received)
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if delErr := guard.Delete(ctx, event.ID); delErr != nil && logg != nil {
				logg.Error(ctx, "stripe.event_unmark_failed", delErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(ctx, "stripe.event_processed")
		}
		responses.WriteJSON(w, http.StatusOK, received)
	}
}

func rejectEvent(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if logg != nil {
		logg.Warn(logg.WithField(ctx, "reason", err.Error()), "stripe.event_rejected")
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = io.WriteString(w, "Webhook Error: "+err.Error())
}
