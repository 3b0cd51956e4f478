package payments

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/kairos100/swissluca-backend/pkg/enums"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
)

// Metadata keys written on every payment intent this service creates.
const (
	MetaPurpose = "purpose"
	MetaUserID  = "user_id"
	MetaOfferID = "offer_id"
	MetaKind    = "kind"
	MetaOrderID = "order_id"
	MetaPlan    = "plan"

	// MetaShowCountdown records whether the activation passes through the
	// activating countdown once paid ("false" for quick activations).
	MetaShowCountdown = "show_countdown"
)

// Outcome is a terminal payment signal from the gateway.
type Outcome struct {
	PaymentIntentID string
	Succeeded       bool
	Amount          decimal.Decimal
	Currency        string
	FailureReason   string
	Metadata        map[string]string
}

// OutcomeFromIntent builds an Outcome from a Stripe payment intent.
func OutcomeFromIntent(intent *stripe.PaymentIntent) Outcome {
	out := Outcome{
		PaymentIntentID: intent.ID,
		Succeeded:       intent.Status == stripe.PaymentIntentStatusSucceeded,
		Amount:          MajorUnits(intent.Amount),
		Currency:        string(intent.Currency),
		Metadata:        intent.Metadata,
	}
	if intent.LastPaymentError != nil {
		out.FailureReason = intent.LastPaymentError.Msg
	}
	return out
}

// OutcomeFromStatus builds an Outcome from a polled intent status.
func OutcomeFromStatus(status *IntentStatus) Outcome {
	out := Outcome{
		PaymentIntentID: status.PaymentIntentID,
		Succeeded:       status.Succeeded(),
		Amount:          MajorUnits(status.Amount),
		Currency:        status.Currency,
		Metadata:        status.Metadata,
	}
	if status.LastPaymentError != nil {
		out.FailureReason = *status.LastPaymentError
	}
	return out
}

// Purpose returns the routing purpose stored in metadata.
func (o Outcome) Purpose() enums.PaymentPurpose {
	return enums.PaymentPurpose(o.Metadata[MetaPurpose])
}

// UserID parses the user id from metadata.
func (o Outcome) UserID() (uuid.UUID, error) {
	return metaUUID(o.Metadata, MetaUserID)
}

// OfferID parses the offer id from metadata.
func (o Outcome) OfferID() (uuid.UUID, error) {
	return metaUUID(o.Metadata, MetaOfferID)
}

// Kind parses the redeemable kind from metadata.
func (o Outcome) Kind() (enums.RedeemableKind, error) {
	kind, err := enums.ParseRedeemableKind(o.Metadata[MetaKind])
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment metadata")
	}
	return kind, nil
}

// ShowCountdown reads MetaShowCountdown, defaulting to true.
func (o Outcome) ShowCountdown() bool {
	return o.Metadata[MetaShowCountdown] != "false"
}

// Plan parses the subscription plan from metadata.
func (o Outcome) Plan() (enums.SubscriptionPlan, error) {
	plan, err := enums.ParseSubscriptionPlan(o.Metadata[MetaPlan])
	if err != nil || !plan.Purchasable() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment metadata has invalid plan %q", o.Metadata[MetaPlan]))
	}
	return plan, nil
}

func metaUUID(meta map[string]string, key string) (uuid.UUID, error) {
	raw, ok := meta[key]
	if !ok || raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment metadata missing %s", key))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("payment metadata has invalid %s", key))
	}
	return id, nil
}
