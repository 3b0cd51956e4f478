package activation

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kairos100/swissluca-backend/internal/countdown"
	"github.com/kairos100/swissluca-backend/internal/events"
	"github.com/kairos100/swissluca-backend/internal/offers"
	"github.com/kairos100/swissluca-backend/internal/payments"
	"github.com/kairos100/swissluca-backend/internal/profiles"
	"github.com/kairos100/swissluca-backend/pkg/config"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
	"github.com/kairos100/swissluca-backend/pkg/logger"
	"github.com/kairos100/swissluca-backend/pkg/metrics"
)

const (
	defaultActivatingWindow = 60 * time.Second
	defaultBlockDuration    = 15 * time.Minute
	defaultTickInterval     = time.Second
	defaultCurrency         = "chf"
	celebrationCapacity     = 100000
	maxCompletionAttempts   = 5

	pathSwipe = "swipe"
	pathQuick = "quick"
)

// Catalog resolves a catalog reference into a redeemable entry.
type Catalog interface {
	Resolve(ctx context.Context, ref offers.Ref) (offers.Redeemable, error)
}

// TxRunner runs fn in a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Params groups the machine's dependencies.
type Params struct {
	Catalog   Catalog
	Gateway   payments.Gateway
	Profiles  *profiles.Repository
	Offers    *offers.Repository
	Payments  *payments.Repository
	Tx        TxRunner
	Clock     countdown.Clock
	Publisher events.Publisher
	Metrics   *metrics.ActivationMetrics
	Logger    *logger.Logger
	Config    config.ActivationConfig
	Location  *time.Location
}

// Machine drives offers through available -> payment_pending -> activating -> blocked
// for every (user, offer) pair. All in-memory state is guarded by mu; completed
// activations live in the database.
type Machine struct {
	catalog   Catalog
	gateway   payments.Gateway
	profiles  *profiles.Repository
	offers    *offers.Repository
	payments  *payments.Repository
	tx        TxRunner
	clock     countdown.Clock
	publisher events.Publisher
	metrics   *metrics.ActivationMetrics
	logg      *logger.Logger
	loc       *time.Location

	factor           decimal.Decimal
	currency         string
	activatingWindow time.Duration
	blockDuration    time.Duration
	pendingTTL       time.Duration
	tickInterval     time.Duration

	mu         sync.Mutex
	pending    *pendingStore
	activating map[flowKey]*activatingFlow
	celebrated *lru.Cache[uuid.UUID, struct{}]
}

// paidWith links a completion to the captured payment behind it.
type paidWith struct {
	paymentIntentID string
	amount          decimal.Decimal
}

type activatingFlow struct {
	userID     uuid.UUID
	redeemable offers.Redeemable
	paid       *paidWith
	timer      *countdown.Countdown

	completing bool
	attempts   int
	lastErr    error
}

func (f *activatingFlow) key() flowKey {
	return flowKey{userID: f.userID, offerID: f.redeemable.ID()}
}

func (f *activatingFlow) paymentIntentID() string {
	if f.paid == nil {
		return ""
	}
	return f.paid.paymentIntentID
}

func NewMachine(params Params) (*Machine, error) {
	switch {
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case params.Profiles == nil:
		return nil, fmt.Errorf("profiles repo required")
	case params.Offers == nil:
		return nil, fmt.Errorf("offers repo required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payments repo required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}

	pending, err := newPendingStore(params.Config.PendingCapacity)
	if err != nil {
		return nil, err
	}
	celebrated, err := lru.New[uuid.UUID, struct{}](celebrationCapacity)
	if err != nil {
		return nil, fmt.Errorf("celebration cache: %w", err)
	}

	m := &Machine{
		catalog:          params.Catalog,
		gateway:          params.Gateway,
		profiles:         params.Profiles,
		offers:           params.Offers,
		payments:         params.Payments,
		tx:               params.Tx,
		clock:            params.Clock,
		publisher:        params.Publisher,
		metrics:          params.Metrics,
		logg:             params.Logger,
		loc:              params.Location,
		factor:           params.Config.Factor(),
		currency:         params.Config.Currency,
		activatingWindow: params.Config.ActivatingWindow,
		blockDuration:    params.Config.BlockDuration,
		pendingTTL:       params.Config.PendingTTL,
		tickInterval:     params.Config.TickInterval,
		pending:          pending,
		activating:       make(map[flowKey]*activatingFlow),
		celebrated:       celebrated,
	}
	if m.clock == nil {
		m.clock = countdown.SystemClock{}
	}
	if m.publisher == nil {
		m.publisher = events.NewLogPublisher(params.Logger)
	}
	if m.loc == nil {
		m.loc = time.UTC
	}
	if m.currency == "" {
		m.currency = defaultCurrency
	}
	if m.activatingWindow <= 0 {
		m.activatingWindow = defaultActivatingWindow
	}
	if m.blockDuration <= 0 {
		m.blockDuration = defaultBlockDuration
	}
	if m.tickInterval <= 0 {
		m.tickInterval = defaultTickInterval
	}
	return m, nil
}

// Result is the outcome of starting or advancing an activation.
type Result struct {
	State           enums.ActivationState `json:"state"`
	OfferID         uuid.UUID             `json:"offer_id"`
	Kind            enums.RedeemableKind  `json:"kind"`
	PaymentIntentID string                `json:"payment_intent_id,omitempty"`
	ClientSecret    string                `json:"client_secret,omitempty"`
	UsagePrice      *decimal.Decimal      `json:"usage_price,omitempty"`
	ActivatingUntil *time.Time            `json:"activating_until,omitempty"`
	Completion      *Completion           `json:"completion,omitempty"`
}

// Completion is returned once an activation has been recorded.
type Completion struct {
	Record    RecordView `json:"record"`
	Celebrate bool       `json:"celebrate"`
}

// RecordView is the API shape of an activation record.
type RecordView struct {
	ID              uuid.UUID            `json:"id"`
	OfferID         uuid.UUID            `json:"offer_id"`
	Kind            enums.RedeemableKind `json:"kind"`
	OfferName       string               `json:"offer_name"`
	ActivatedAt     time.Time            `json:"activated_at"`
	SavedAmount     decimal.Decimal      `json:"saved_amount"`
	BlockedUntil    time.Time            `json:"blocked_until"`
	PaymentIntentID *string              `json:"payment_intent_id,omitempty"`
}

func NewRecordView(r models.ActivationRecord) RecordView {
	return RecordView{
		ID:              r.ID,
		OfferID:         r.OfferID,
		Kind:            r.Kind,
		OfferName:       r.OfferName,
		ActivatedAt:     r.ActivatedAt,
		SavedAmount:     r.SavedAmount,
		BlockedUntil:    r.BlockedUntil,
		PaymentIntentID: r.PaymentIntentID,
	}
}

// RecordViews maps records in order.
func RecordViews(records []models.ActivationRecord) []RecordView {
	out := make([]RecordView, 0, len(records))
	for _, r := range records {
		out = append(out, NewRecordView(r))
	}
	return out
}

// RequestActivation starts the swipe-confirmed flow: priced entries wait for
// payment and then run the activating countdown, free entries go straight to
// the countdown.
func (m *Machine) RequestActivation(ctx context.Context, userID uuid.UUID, ref offers.Ref) (*Result, error) {
	return m.start(ctx, userID, ref, true)
}

// QuickActivate is the flash deal shortcut without swipe confirmation. It
// skips the activating countdown on both the free and the paid path.
func (m *Machine) QuickActivate(ctx context.Context, userID uuid.UUID, ref offers.Ref) (*Result, error) {
	if ref.Kind != enums.RedeemableKindFlashDeal {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quick activation is only available for flash deals")
	}
	return m.start(ctx, userID, ref, false)
}

func (m *Machine) start(ctx context.Context, userID uuid.UUID, ref offers.Ref, showCountdown bool) (*Result, error) {
	ctx = m.logg.WithFields(ctx, map[string]any{
		"user_id":  userID.String(),
		"offer_id": ref.ID.String(),
		"kind":     ref.Kind.String(),
	})

	r, err := m.catalog.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now()
	if err := r.CheckRedeemable(now, m.loc); err != nil {
		return nil, err
	}

	status, err := m.Status(ctx, userID, r.ID())
	if err != nil {
		return nil, err
	}
	switch status.State {
	case enums.ActivationStateBlocked:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "offer is blocked for this user").
			WithDetails(map[string]any{"blocked_until": status.BlockedUntil, "remaining": status.Remaining})
	case enums.ActivationStateActivating:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "activation already in progress").
			WithDetails(map[string]any{"activating_until": status.ActivatingUntil})
	}

	path := pathSwipe
	if !showCountdown {
		path = pathQuick
	}
	m.metrics.IncRequested(r.Kind().String(), path)

	usage := decimal.Zero
	if price := r.Price(); price != nil {
		usage = price.Mul(m.factor).Round(2)
	}
	if usage.IsPositive() {
		return m.startPayment(ctx, userID, r, usage, showCountdown, now)
	}

	if showCountdown {
		flow, created := m.enterActivating(userID, r, nil)
		if !created {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "activation already in progress")
		}
		m.logg.Info(ctx, "activation.activating")
		return activatingResult(flow), nil
	}

	completion, err := m.completeActivation(ctx, userID, r, nil, now)
	if err != nil {
		return nil, err
	}
	return &Result{
		State:      enums.ActivationStateBlocked,
		OfferID:    r.ID(),
		Kind:       r.Kind(),
		Completion: completion,
	}, nil
}

func (m *Machine) startPayment(ctx context.Context, userID uuid.UUID, r offers.Redeemable, usage decimal.Decimal, showCountdown bool, now time.Time) (*Result, error) {
	orderID := uuid.NewString()
	handle, err := m.gateway.CreatePayment(ctx, payments.PaymentRequest{
		Amount:      usage,
		Currency:    m.currency,
		Description: fmt.Sprintf("SWISS LUCA activation: %s", r.Name()),
		OrderID:     orderID,
		Metadata: map[string]string{
			payments.MetaPurpose:       enums.PaymentPurposeActivation.String(),
			payments.MetaUserID:        userID.String(),
			payments.MetaOfferID:       r.ID().String(),
			payments.MetaKind:          r.Kind().String(),
			payments.MetaOrderID:       orderID,
			payments.MetaShowCountdown: strconv.FormatBool(showCountdown),
		},
	})
	if err != nil {
		m.logg.Error(ctx, "activation.payment_create_failed", err)
		return nil, err
	}

	offerID := r.ID()
	record := &models.PaymentRecord{
		PaymentIntentID: handle.PaymentIntentID,
		UserID:          userID,
		Purpose:         enums.PaymentPurposeActivation,
		Amount:          usage,
		Currency:        m.currency,
		OfferID:         &offerID,
		Plan:            enums.SubscriptionPlanNone,
	}
	if err := m.payments.Create(ctx, record); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.pending.put(&PendingPayment{
		UserID:          userID,
		Redeemable:      r,
		UsagePrice:      usage,
		PaymentIntentID: handle.PaymentIntentID,
		OrderID:         orderID,
		ShowCountdown:   showCountdown,
		CreatedAt:       now,
	})
	m.metrics.SetPending(m.pending.len())
	m.mu.Unlock()

	m.logg.Info(m.logg.WithPaymentIntentID(ctx, handle.PaymentIntentID), "activation.payment_pending")
	return &Result{
		State:           enums.ActivationStatePaymentPending,
		OfferID:         r.ID(),
		Kind:            r.Kind(),
		PaymentIntentID: handle.PaymentIntentID,
		ClientSecret:    handle.ClientSecret,
		UsagePrice:      &usage,
	}, nil
}

func activatingResult(flow *activatingFlow) *Result {
	until := flow.timer.Deadline()
	return &Result{
		State:           enums.ActivationStateActivating,
		OfferID:         flow.redeemable.ID(),
		Kind:            flow.redeemable.Kind(),
		PaymentIntentID: flow.paymentIntentID(),
		ActivatingUntil: &until,
	}
}

func completedResult(record models.ActivationRecord, celebrate bool) *Result {
	return &Result{
		State:           enums.ActivationStateBlocked,
		OfferID:         record.OfferID,
		Kind:            record.Kind,
		PaymentIntentID: derefString(record.PaymentIntentID),
		Completion:      &Completion{Record: NewRecordView(record), Celebrate: celebrate},
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
