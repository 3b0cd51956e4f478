package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/kairos100/swissluca-backend/internal/activation"
	"github.com/kairos100/swissluca-backend/internal/countdown"
	"github.com/kairos100/swissluca-backend/internal/events"
	"github.com/kairos100/swissluca-backend/internal/payments"
	"github.com/kairos100/swissluca-backend/internal/subscriptions"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/logger"
	"github.com/kairos100/swissluca-backend/pkg/metrics"
)

type activationHandler interface {
	HandlePaymentSucceeded(ctx context.Context, out payments.Outcome) (*activation.Result, error)
	HandlePaymentFailed(ctx context.Context, out payments.Outcome) error
}

type subscriptionHandler interface {
	ApplyPayment(ctx context.Context, out payments.Outcome) (*subscriptions.View, error)
	MarkPaymentFailed(ctx context.Context, out payments.Outcome) error
}

type statusSource interface {
	PaymentStatus(ctx context.Context, paymentIntentID string) (*payments.IntentStatus, error)
}

type ServiceParams struct {
	Activations   activationHandler
	Subscriptions subscriptionHandler
	Gateway       statusSource
	Publisher     events.Publisher
	Metrics       *metrics.ActivationMetrics
	Clock         countdown.Clock
	Logger        *logger.Logger
}

// Service routes terminal payment signals, from Stripe webhooks or from
// client confirmations, to the flow named in the intent's purpose metadata.
type Service struct {
	activations   activationHandler
	subscriptions subscriptionHandler
	gateway       statusSource
	publisher     events.Publisher
	metrics       *metrics.ActivationMetrics
	clock         countdown.Clock
	logg          *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Activations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "activation handler required")
	}
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription handler required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	publisher := params.Publisher
	if publisher == nil {
		publisher = events.NewLogPublisher(params.Logger)
	}
	clock := params.Clock
	if clock == nil {
		clock = countdown.SystemClock{}
	}
	return &Service{
		activations:   params.Activations,
		subscriptions: params.Subscriptions,
		gateway:       params.Gateway,
		publisher:     publisher,
		metrics:       params.Metrics,
		clock:         clock,
		logg:          params.Logger,
	}, nil
}

// Confirmation reports what a payment signal did.
type Confirmation struct {
	PaymentIntentID string               `json:"payment_intent_id"`
	Status          string               `json:"status"`
	Purpose         enums.PaymentPurpose `json:"purpose,omitempty"`
	Activation      *activation.Result   `json:"activation,omitempty"`
	Subscription    *subscriptions.View  `json:"subscription,omitempty"`
}

// HandleEvent processes a verified Stripe event. Event types other than the
// payment intent outcomes are acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		out := payments.OutcomeFromIntent(&intent)
		out.Succeeded = event.Type == stripe.EventTypePaymentIntentSucceeded
		_, err := s.HandleOutcome(ctx, out)
		return err
	default:
		s.logg.Debug(s.logg.WithField(ctx, "event_type", string(event.Type)), "stripe event ignored")
		return nil
	}
}

// HandleOutcome dispatches out by purpose and emits the payment event.
func (s *Service) HandleOutcome(ctx context.Context, out payments.Outcome) (*Confirmation, error) {
	ctx = s.logg.WithPaymentIntentID(ctx, out.PaymentIntentID)
	purpose := out.Purpose()
	conf := &Confirmation{PaymentIntentID: out.PaymentIntentID, Purpose: purpose, Status: "failed"}
	if out.Succeeded {
		conf.Status = "succeeded"
	}

	var err error
	switch purpose {
	case enums.PaymentPurposeActivation:
		if out.Succeeded {
			conf.Activation, err = s.activations.HandlePaymentSucceeded(ctx, out)
		} else {
			err = s.activations.HandlePaymentFailed(ctx, out)
		}
	case enums.PaymentPurposeSubscription:
		if out.Succeeded {
			conf.Subscription, err = s.subscriptions.ApplyPayment(ctx, out)
		} else {
			err = s.subscriptions.MarkPaymentFailed(ctx, out)
		}
	default:
		// raw payments from the legacy endpoint carry no purpose
		s.logg.Info(ctx, "payment without purpose acknowledged")
		return conf, nil
	}
	if err != nil {
		return nil, err
	}

	s.metrics.IncPaymentOutcome(purpose.String(), conf.Status)
	eventType := events.TypePaymentFailed
	if out.Succeeded {
		eventType = events.TypePaymentSucceeded
	}
	env := events.NewEnvelope(eventType, s.clock.Now(), paymentEvent{
		PaymentIntentID: out.PaymentIntentID,
		Purpose:         purpose,
		UserID:          out.Metadata[payments.MetaUserID],
		Amount:          out.Amount.StringFixed(2),
		Currency:        out.Currency,
		FailureReason:   out.FailureReason,
	})
	if err := s.publisher.Publish(ctx, env); err != nil {
		s.logg.Error(ctx, "payment event publish failed", err)
	}
	return conf, nil
}

type paymentEvent struct {
	PaymentIntentID string               `json:"payment_intent_id"`
	Purpose         enums.PaymentPurpose `json:"purpose"`
	UserID          string               `json:"user_id,omitempty"`
	Amount          string               `json:"amount"`
	Currency        string               `json:"currency"`
	FailureReason   string               `json:"failure_reason,omitempty"`
}

// Confirm verifies a client-reported payment against Stripe and applies it
// the same way a webhook would. Intents still in flight are reported as-is.
func (s *Service) Confirm(ctx context.Context, userID uuid.UUID, paymentIntentID string) (*Confirmation, error) {
	status, err := s.gateway.PaymentStatus(ctx, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if status.Metadata[payments.MetaUserID] != userID.String() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another user")
	}

	out := payments.OutcomeFromStatus(status)
	switch {
	case status.Succeeded():
		return s.HandleOutcome(ctx, out)
	case paymentFailed(status):
		if _, err := s.HandleOutcome(ctx, out); err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodePaymentFailed, "payment was not completed").
			WithDetails(map[string]any{"status": status.Status, "reason": out.FailureReason})
	default:
		return &Confirmation{
			PaymentIntentID: paymentIntentID,
			Status:          status.Status,
			Purpose:         out.Purpose(),
		}, nil
	}
}

func paymentFailed(status *payments.IntentStatus) bool {
	switch stripe.PaymentIntentStatus(status.Status) {
	case stripe.PaymentIntentStatusCanceled:
		return true
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return status.LastPaymentError != nil
	}
	return false
}
