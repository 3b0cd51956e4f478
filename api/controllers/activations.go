package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kairos100/swissluca-backend/api/middleware"
	"github.com/kairos100/swissluca-backend/api/responses"
	"github.com/kairos100/swissluca-backend/api/validators"
	"github.com/kairos100/swissluca-backend/internal/activation"
	"github.com/kairos100/swissluca-backend/internal/offers"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/logger"
)

// ActivationService is the slice of the activation machine the API drives.
type ActivationService interface {
	RequestActivation(ctx context.Context, userID uuid.UUID, ref offers.Ref) (*activation.Result, error)
	QuickActivate(ctx context.Context, userID uuid.UUID, ref offers.Ref) (*activation.Result, error)
	Status(ctx context.Context, userID, offerID uuid.UUID) (*activation.StatusView, error)
	Locked(ctx context.Context, userID uuid.UUID) ([]activation.LockedOffer, error)
	History(ctx context.Context, userID uuid.UUID) ([]models.ActivationRecord, error)
}

type activateFunc func(ctx context.Context, userID uuid.UUID, ref offers.Ref) (*activation.Result, error)

// ActivateOffer starts the swipe-confirmed activation of a regular offer.
func ActivateOffer(svc ActivationService, logg *logger.Logger) http.HandlerFunc {
	return activate(svc, logg, "offerID", enums.RedeemableKindOffer, func(s ActivationService) activateFunc {
		return s.RequestActivation
	})
}

func ActivateFlashDeal(svc ActivationService, logg *logger.Logger) http.HandlerFunc {
	return activate(svc, logg, "dealID", enums.RedeemableKindFlashDeal, func(s ActivationService) activateFunc {
		return s.RequestActivation
	})
}

// QuickActivateFlashDeal skips the swipe confirmation. Free deals complete
// immediately; priced ones complete without the countdown once paid.
func QuickActivateFlashDeal(svc ActivationService, logg *logger.Logger) http.HandlerFunc {
	return activate(svc, logg, "dealID", enums.RedeemableKindFlashDeal, func(s ActivationService) activateFunc {
		return s.QuickActivate
	})
}

func activate(svc ActivationService, logg *logger.Logger, param string, kind enums.RedeemableKind, pick func(ActivationService) activateFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}
		userID, ok := middleware.UserUUIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		id, err := validators.ParseUUIDParam(r, param)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithOfferID(ctx, id.String())
		}

		result, err := pick(svc)(ctx, userID, offers.Ref{Kind: kind, ID: id})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := http.StatusAccepted
		if result.Completion != nil {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// ActivationStatus reports the derived state of one offer for the caller.
func ActivationStatus(svc ActivationService, logg *logger.Logger, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}
		userID, ok := middleware.UserUUIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		offerID, err := validators.ParseUUIDParam(r, param)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		view, err := svc.Status(ctx, userID, offerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func ActivationHistory(svc ActivationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}
		userID, ok := middleware.UserUUIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		records, err := svc.History(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, activation.RecordViews(records))
	}
}

// LockedOffers lists offers still inside their block window.
func LockedOffers(svc ActivationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}
		userID, ok := middleware.UserUUIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		locked, err := svc.Locked(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if locked == nil {
			locked = []activation.LockedOffer{}
		}
		responses.WriteSuccess(w, locked)
	}
}
