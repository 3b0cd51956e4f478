package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kairos100/swissluca-backend/api/middleware"
	"github.com/kairos100/swissluca-backend/api/responses"
	"github.com/kairos100/swissluca-backend/api/validators"
	"github.com/kairos100/swissluca-backend/internal/payments"
	stripewebhook "github.com/kairos100/swissluca-backend/internal/webhooks/stripe"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/logger"
	"github.com/kairos100/swissluca-backend/pkg/pagination"
)

const missingPaymentFields = "Amount, currency, and description are required"

// PaymentConfirmer applies a client-reported payment after checking it with Stripe.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, userID uuid.UUID, paymentIntentID string) (*stripewebhook.Confirmation, error)
}

type createPaymentIntentRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Currency    string           `json:"currency"`
	Description string           `json:"description"`
	Metadata    map[string]any   `json:"metadata"`
}

type legacyError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CreatePaymentIntent is the raw TWINT payment endpoint kept wire compatible
// with the original web client: bare JSON bodies, no envelope.
func CreatePaymentIntent(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteJSON(w, http.StatusInternalServerError, legacyError{Error: "payment service unavailable"})
			return
		}

		var payload createPaymentIntentRequest
		if err := validators.DecodeJSONBodyLenient(r, &payload); err != nil {
			responses.WriteJSON(w, http.StatusBadRequest, legacyError{Error: missingPaymentFields})
			return
		}
		if payload.Amount == nil || strings.TrimSpace(payload.Currency) == "" || strings.TrimSpace(payload.Description) == "" {
			responses.WriteJSON(w, http.StatusBadRequest, legacyError{Error: missingPaymentFields})
			return
		}

		handle, err := svc.CreateIntent(ctx, payments.IntentInput{
			Amount:      *payload.Amount,
			Currency:    payload.Currency,
			Description: payload.Description,
			Metadata:    stringifyMetadata(payload.Metadata),
		})
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				responses.WriteJSON(w, http.StatusBadRequest, legacyError{Error: missingPaymentFields})
				return
			}
			if logg != nil {
				logg.Error(ctx, "payment intent creation failed", err)
			}
			responses.WriteJSON(w, http.StatusInternalServerError, legacyError{
				Error:   "Failed to create payment intent",
				Details: causeMessage(err),
			})
			return
		}

		responses.WriteJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"paymentIntentId": handle.PaymentIntentID,
			"clientSecret":    handle.ClientSecret,
		})
	}
}

// PaymentStatus reports a payment intent's gateway state.
func PaymentStatus(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteJSON(w, http.StatusInternalServerError, legacyError{Error: "payment service unavailable"})
			return
		}

		id := strings.TrimSpace(chi.URLParam(r, "paymentIntentID"))
		status, err := svc.Status(ctx, id)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				responses.WriteJSON(w, http.StatusBadRequest, legacyError{Error: "payment intent id is required"})
				return
			}
			if logg != nil {
				logg.Error(logg.WithPaymentIntentID(ctx, id), "payment status lookup failed", err)
			}
			responses.WriteJSON(w, http.StatusInternalServerError, legacyError{
				Error:   "Failed to retrieve payment status",
				Details: causeMessage(err),
			})
			return
		}
		responses.WriteJSON(w, http.StatusOK, status)
	}
}

// PaymentConfirm settles a payment the client reports as finished without
// waiting for the webhook.
func PaymentConfirm(svc PaymentConfirmer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, ok := middleware.UserUUIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		id := strings.TrimSpace(chi.URLParam(r, "paymentIntentID"))
		if id == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required"))
			return
		}

		conf, err := svc.Confirm(ctx, userID, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, conf)
	}
}

// PaymentHistory lists the caller's recorded payments, newest first.
func PaymentHistory(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, ok := middleware.UserUUIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		page, err := svc.History(ctx, userID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func stringifyMetadata(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// causeMessage returns the gateway's own message when err wraps one.
func causeMessage(err error) string {
	if cause := errors.Unwrap(err); cause != nil {
		return cause.Error()
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}
