package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	pkgstripe "github.com/kairos100/swissluca-backend/pkg/stripe"
)

var hundred = decimal.NewFromInt(100)

// PaymentRequest is a charge in major currency units.
type PaymentRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	OrderID     string
	Metadata    map[string]string
}

// PaymentHandle is what the client needs to confirm the payment.
type PaymentHandle struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
}

// IntentStatus mirrors the fields the legacy status endpoint exposes.
type IntentStatus struct {
	PaymentIntentID  string            `json:"paymentIntentId"`
	Status           string            `json:"status"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	LastPaymentError *string           `json:"lastPaymentError"`
	Metadata         map[string]string `json:"-"`
}

// Succeeded reports whether the gateway captured the payment.
func (s IntentStatus) Succeeded() bool {
	return s.Status == string(stripe.PaymentIntentStatusSucceeded)
}

// Gateway creates charges and reports their status.
type Gateway interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (PaymentHandle, error)
	PaymentStatus(ctx context.Context, paymentIntentID string) (*IntentStatus, error)
}

type intentAPI interface {
	CreatePaymentIntent(ctx context.Context, in pkgstripe.PaymentIntentInput) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// StripeGateway implements Gateway with TWINT payment intents.
type StripeGateway struct {
	api intentAPI
}

func NewStripeGateway(api intentAPI) (*StripeGateway, error) {
	if api == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &StripeGateway{api: api}, nil
}

// MinorUnits converts a major-unit amount to cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// MajorUnits converts cents back to a decimal amount.
func MajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

func (g *StripeGateway) CreatePayment(ctx context.Context, req PaymentRequest) (PaymentHandle, error) {
	if !req.Amount.IsPositive() {
		return PaymentHandle{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if strings.TrimSpace(req.Currency) == "" || strings.TrimSpace(req.Description) == "" {
		return PaymentHandle{}, pkgerrors.New(pkgerrors.CodeValidation, "currency and description are required")
	}

	metadata := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if req.OrderID != "" {
		metadata[MetaOrderID] = req.OrderID
	}

	intent, err := g.api.CreatePaymentIntent(ctx, pkgstripe.PaymentIntentInput{
		AmountMinor: MinorUnits(req.Amount),
		Currency:    req.Currency,
		Description: req.Description,
		Metadata:    metadata,
	})
	if err != nil {
		return PaymentHandle{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}
	return PaymentHandle{PaymentIntentID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

func (g *StripeGateway) PaymentStatus(ctx context.Context, paymentIntentID string) (*IntentStatus, error) {
	if strings.TrimSpace(paymentIntentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	intent, err := g.api.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
	}
	return StatusFromIntent(intent), nil
}

// StatusFromIntent maps a Stripe payment intent to IntentStatus.
func StatusFromIntent(intent *stripe.PaymentIntent) *IntentStatus {
	status := &IntentStatus{
		PaymentIntentID: intent.ID,
		Status:          string(intent.Status),
		Amount:          intent.Amount,
		Currency:        string(intent.Currency),
		Metadata:        intent.Metadata,
	}
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		msg := intent.LastPaymentError.Msg
		status.LastPaymentError = &msg
	}
	return status
}
