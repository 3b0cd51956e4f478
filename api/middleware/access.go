package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kairos100/swissluca-backend/api/responses"
	"github.com/kairos100/swissluca-backend/internal/subscriptions"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/logger"
)

// AccessChecker evaluates a user's subscription.
type AccessChecker interface {
	Access(ctx context.Context, userID uuid.UUID) (subscriptions.Evaluation, error)
}

// RequireAccess rejects users without a granting subscription or trial.
func RequireAccess(checker AccessChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID, ok := UserUUIDFromContext(ctx)
			if !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
				return
			}
			eval, err := checker.Access(ctx, userID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if !eval.HasAccess {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSubscriptionRequired, "an active subscription or trial is required").
					WithDetails(map[string]any{"status": eval.Status, "end": eval.End}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
