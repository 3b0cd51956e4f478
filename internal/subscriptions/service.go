package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kairos100/swissluca-backend/internal/countdown"
	"github.com/kairos100/swissluca-backend/internal/payments"
	"github.com/kairos100/swissluca-backend/internal/profiles"
	"github.com/kairos100/swissluca-backend/pkg/config"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/logger"
)

// Service exposes subscription state and plan purchases.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	Access(ctx context.Context, userID uuid.UUID) (Evaluation, error)
	Checkout(ctx context.Context, userID uuid.UUID, plan enums.SubscriptionPlan) (*CheckoutResult, error)
	ApplyPayment(ctx context.Context, out payments.Outcome) (*View, error)
	MarkPaymentFailed(ctx context.Context, out payments.Outcome) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Profiles *profiles.Repository
	Payments *payments.Repository
	Gateway  payments.Gateway
	Tx       txRunner
	Clock    countdown.Clock
	Logger   *logger.Logger
	Config   config.SubscriptionConfig
	Currency string
}

type service struct {
	profiles *profiles.Repository
	payments *payments.Repository
	gateway  payments.Gateway
	tx       txRunner
	clock    countdown.Clock
	logg     *logger.Logger
	trial    time.Duration
	prices   map[enums.SubscriptionPlan]decimal.Decimal
	currency string
}

func NewService(params ServiceParams) (Service, error) {
	if params.Profiles == nil {
		return nil, fmt.Errorf("profiles repo required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repo required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	monthly, err := decimal.NewFromString(strings.TrimSpace(params.Config.MonthlyPrice))
	if err != nil {
		return nil, fmt.Errorf("monthly price: %w", err)
	}
	yearly, err := decimal.NewFromString(strings.TrimSpace(params.Config.YearlyPrice))
	if err != nil {
		return nil, fmt.Errorf("yearly price: %w", err)
	}

	clock := params.Clock
	if clock == nil {
		clock = countdown.SystemClock{}
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "chf"
	}

	return &service{
		profiles: params.Profiles,
		payments: params.Payments,
		gateway:  params.Gateway,
		tx:       params.Tx,
		clock:    clock,
		logg:     params.Logger,
		trial:    params.Config.TrialPeriod(),
		prices: map[enums.SubscriptionPlan]decimal.Decimal{
			enums.SubscriptionPlanMonthly: monthly,
			enums.SubscriptionPlanYearly:  yearly,
		},
		currency: currency,
	}, nil
}

// View is the subscription section of the user's profile.
type View struct {
	Evaluation
	Plan       enums.SubscriptionPlan `json:"plan"`
	TotalPaid  decimal.Decimal        `json:"total_paid"`
	TotalSaved decimal.Decimal        `json:"total_saved"`
	Points     int                    `json:"points"`
	Level      int                    `json:"level"`
}

func newView(p *models.UserProfile, now time.Time) *View {
	return &View{
		Evaluation: Evaluate(Snapshot{Status: p.SubscriptionStatus, End: p.SubscriptionEnd}, now),
		Plan:       p.SubscriptionPlan,
		TotalPaid:  p.TotalPaid,
		TotalSaved: p.TotalSaved,
		Points:     p.Points,
		Level:      p.Level,
	}
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	now := s.clock.Now()
	p, err := s.profiles.Ensure(ctx, userID, now, s.trial)
	if err != nil {
		return nil, err
	}
	return newView(p, now), nil
}

// Access evaluates the user's subscription, creating a trial profile on first sight.
func (s *service) Access(ctx context.Context, userID uuid.UUID) (Evaluation, error) {
	view, err := s.Get(ctx, userID)
	if err != nil {
		return Evaluation{}, err
	}
	return view.Evaluation, nil
}

// CheckoutResult carries what the client needs to pay for a plan.
type CheckoutResult struct {
	Plan            enums.SubscriptionPlan `json:"plan"`
	Amount          decimal.Decimal        `json:"amount"`
	Currency        string                 `json:"currency"`
	PaymentIntentID string                 `json:"payment_intent_id"`
	ClientSecret    string                 `json:"client_secret"`
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, plan enums.SubscriptionPlan) (*CheckoutResult, error) {
	if !plan.Purchasable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan must be monthly or yearly")
	}
	if _, err := s.profiles.Ensure(ctx, userID, s.clock.Now(), s.trial); err != nil {
		return nil, err
	}

	amount := s.prices[plan]
	orderID := uuid.NewString()
	handle, err := s.gateway.CreatePayment(ctx, payments.PaymentRequest{
		Amount:      amount,
		Currency:    s.currency,
		Description: fmt.Sprintf("SWISS LUCA %s subscription", plan),
		OrderID:     orderID,
		Metadata: map[string]string{
			payments.MetaPurpose: enums.PaymentPurposeSubscription.String(),
			payments.MetaUserID:  userID.String(),
			payments.MetaPlan:    plan.String(),
			payments.MetaOrderID: orderID,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.payments.Create(ctx, &models.PaymentRecord{
		PaymentIntentID: handle.PaymentIntentID,
		UserID:          userID,
		Purpose:         enums.PaymentPurposeSubscription,
		Amount:          amount,
		Currency:        s.currency,
		Plan:            plan,
	}); err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id":           userID.String(),
		"plan":              plan.String(),
		"payment_intent_id": handle.PaymentIntentID,
	}), "subscription.checkout_created")

	return &CheckoutResult{
		Plan:            plan,
		Amount:          amount,
		Currency:        s.currency,
		PaymentIntentID: handle.PaymentIntentID,
		ClientSecret:    handle.ClientSecret,
	}, nil
}

// ApplyPayment activates the plan paid for by out. The payment record's move
// to succeeded, from pending or from an earlier decline, gates the extension,
// so repeated signals extend the subscription once.
func (s *service) ApplyPayment(ctx context.Context, out payments.Outcome) (*View, error) {
	userID, err := out.UserID()
	if err != nil {
		return nil, err
	}
	plan, err := out.Plan()
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":           userID.String(),
		"payment_intent_id": out.PaymentIntentID,
		"plan":              plan.String(),
	})

	now := s.clock.Now()
	if _, err := s.profiles.Ensure(ctx, userID, now, s.trial); err != nil {
		return nil, err
	}

	known, err := s.payments.FindByIntent(ctx, out.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if known == nil {
		if err := s.payments.Create(ctx, &models.PaymentRecord{
			PaymentIntentID: out.PaymentIntentID,
			UserID:          userID,
			Purpose:         enums.PaymentPurposeSubscription,
			Amount:          out.Amount,
			Currency:        out.Currency,
			Plan:            plan,
		}); err != nil {
			return nil, err
		}
	}

	var applied bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.payments.WithTx(tx).Transition(ctx, out.PaymentIntentID, enums.PaymentStatusSucceeded, nil)
		if err != nil || !moved {
			return err
		}
		profilesRepo := s.profiles.WithTx(tx)
		profile, err := profilesRepo.Get(ctx, userID)
		if err != nil {
			return err
		}
		end := Extend(profile.SubscriptionEnd, now, plan)
		if err := profilesRepo.ApplySubscriptionPayment(ctx, userID, plan, end, out.Amount); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		s.logg.Error(ctx, "subscription.apply_payment_failed", err)
		return nil, err
	}

	if applied {
		s.logg.Info(ctx, "subscription.activated")
	} else {
		s.logg.Info(ctx, "subscription.payment_signal_duplicate")
	}

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newView(profile, now), nil
}

func (s *service) MarkPaymentFailed(ctx context.Context, out payments.Outcome) error {
	var reason *string
	if out.FailureReason != "" {
		r := out.FailureReason
		reason = &r
	}
	_, err := s.payments.Transition(ctx, out.PaymentIntentID, enums.PaymentStatusFailed, reason)
	return err
}
