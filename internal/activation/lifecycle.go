package activation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kairos100/swissluca-backend/internal/countdown"
	"github.com/kairos100/swissluca-backend/internal/events"
	"github.com/kairos100/swissluca-backend/internal/offers"
	"github.com/kairos100/swissluca-backend/internal/payments"
	"github.com/kairos100/swissluca-backend/internal/profiles"
	"github.com/kairos100/swissluca-backend/pkg/db"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
)

// Matches both the Postgres index name and the SQLite column in unique violations.
const activationIntentConstraint = "payment_intent"

// HandlePaymentSucceeded advances the flow behind a captured payment. Signals
// for a payment intent that already produced a record, or is already counting
// down, return the existing state without writing anything.
func (m *Machine) HandlePaymentSucceeded(ctx context.Context, out payments.Outcome) (*Result, error) {
	if out.PaymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	ctx = m.logg.WithPaymentIntentID(ctx, out.PaymentIntentID)

	existing, err := m.profiles.ActivationByPaymentIntent(ctx, out.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		m.logg.Info(ctx, "activation.payment_signal_duplicate")
		return completedResult(*existing, false), nil
	}

	m.mu.Lock()
	if flow := m.activatingByIntentLocked(out.PaymentIntentID); flow != nil {
		m.mu.Unlock()
		return activatingResult(flow), nil
	}
	p, ok := m.pending.takeByIntent(out.PaymentIntentID)
	m.metrics.SetPending(m.pending.len())
	m.mu.Unlock()

	if !ok {
		p, err = m.recoverPending(ctx, out)
		if err != nil {
			return nil, err
		}
	}
	ctx = m.logg.WithFields(ctx, map[string]any{
		"user_id":  p.UserID.String(),
		"offer_id": p.Redeemable.ID().String(),
	})

	paid := &paidWith{paymentIntentID: out.PaymentIntentID, amount: out.Amount}
	if p.ShowCountdown {
		flow, created := m.enterActivating(p.UserID, p.Redeemable, paid)
		if created || flow.paymentIntentID() == out.PaymentIntentID {
			m.logg.Info(ctx, "activation.activating")
			return activatingResult(flow), nil
		}
		// A second paid flow for the same offer is recorded right away.
	}

	completion, err := m.completeActivation(ctx, p.UserID, p.Redeemable, paid, m.clock.Now())
	if err != nil {
		return nil, m.writeFailure(ctx, err)
	}
	return &Result{
		State:           enums.ActivationStateBlocked,
		OfferID:         p.Redeemable.ID(),
		Kind:            p.Redeemable.Kind(),
		PaymentIntentID: out.PaymentIntentID,
		Completion:      completion,
	}, nil
}

// HandlePaymentFailed drops the pending context and marks the payment failed.
// No activation record is written and the offer stays available.
func (m *Machine) HandlePaymentFailed(ctx context.Context, out payments.Outcome) error {
	if out.PaymentIntentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	ctx = m.logg.WithPaymentIntentID(ctx, out.PaymentIntentID)

	m.mu.Lock()
	_, dropped := m.pending.takeByIntent(out.PaymentIntentID)
	m.metrics.SetPending(m.pending.len())
	m.mu.Unlock()

	var reason *string
	if out.FailureReason != "" {
		r := out.FailureReason
		reason = &r
	}
	if _, err := m.payments.Transition(ctx, out.PaymentIntentID, enums.PaymentStatusFailed, reason); err != nil {
		return err
	}

	ctx = m.logg.WithField(ctx, "context_dropped", dropped)
	m.logg.Warn(ctx, "activation.payment_failed")
	return nil
}

// recoverPending rebuilds a context from payment metadata when the in-memory
// one is gone (restart, TTL sweep, or replacement by a newer request).
func (m *Machine) recoverPending(ctx context.Context, out payments.Outcome) (*PendingPayment, error) {
	userID, err := out.UserID()
	if err != nil {
		return nil, err
	}
	offerID, err := out.OfferID()
	if err != nil {
		return nil, err
	}
	kind, err := out.Kind()
	if err != nil {
		return nil, err
	}
	r, err := m.catalog.Resolve(ctx, offers.Ref{Kind: kind, ID: offerID})
	if err != nil {
		return nil, err
	}
	m.logg.Warn(ctx, "activation.pending_context_recovered")
	return &PendingPayment{
		UserID:          userID,
		Redeemable:      r,
		UsagePrice:      out.Amount,
		PaymentIntentID: out.PaymentIntentID,
		OrderID:         out.Metadata[payments.MetaOrderID],
		ShowCountdown:   out.ShowCountdown(),
		CreatedAt:       m.clock.Now(),
	}, nil
}

func (m *Machine) activatingByIntentLocked(paymentIntentID string) *activatingFlow {
	for _, flow := range m.activating {
		if flow.paymentIntentID() == paymentIntentID {
			return flow
		}
	}
	return nil
}

// enterActivating starts the countdown for (user, offer). When a flow is
// already counting down for the pair it is returned with created=false.
func (m *Machine) enterActivating(userID uuid.UUID, r offers.Redeemable, paid *paidWith) (*activatingFlow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := flowKey{userID: userID, offerID: r.ID()}
	if existing, ok := m.activating[key]; ok {
		return existing, false
	}
	flow := &activatingFlow{
		userID:     userID,
		redeemable: r,
		paid:       paid,
		timer:      countdown.Start(m.clock, m.activatingWindow, nil),
	}
	m.activating[key] = flow
	return flow, true
}

// completeActivation writes the record, the reward aggregates, the payment
// status and the flash deal sold counter in one transaction.
// activatedAt is the countdown deadline for flows that went through it.
func (m *Machine) completeActivation(ctx context.Context, userID uuid.UUID, r offers.Redeemable, paid *paidWith, activatedAt time.Time) (*Completion, error) {
	now := m.clock.Now().UTC()
	activatedAt = activatedAt.UTC()
	saved := r.Saved().Round(2)

	record := &models.ActivationRecord{
		ID:           uuid.New(),
		UserID:       userID,
		OfferID:      r.ID(),
		Kind:         r.Kind(),
		OfferName:    r.Name(),
		ActivatedAt:  activatedAt,
		SavedAmount:  saved,
		BlockedUntil: activatedAt.Add(m.blockDuration),
	}
	if paid != nil {
		pi := paid.paymentIntentID
		record.PaymentIntentID = &pi
	}

	var prior *models.ActivationRecord
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		profilesRepo := m.profiles.WithTx(tx)

		if paid != nil {
			found, err := profilesRepo.ActivationByPaymentIntent(ctx, paid.paymentIntentID)
			if err != nil {
				return err
			}
			if found != nil {
				prior = found
				return nil
			}
		} else {
			latest, err := profilesRepo.LatestActivation(ctx, userID, r.ID())
			if err != nil {
				return err
			}
			if latest != nil && IsBlocked(now, latest.BlockedUntil) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "offer is blocked for this user")
			}
		}

		if err := profilesRepo.AppendActivation(ctx, record); err != nil {
			return err
		}
		if err := profilesRepo.ApplyActivationRewards(ctx, userID, decimal.Max(saved, decimal.Zero), profiles.Rewards(saved)); err != nil {
			return err
		}

		if paid != nil {
			moved, err := m.payments.WithTx(tx).Transition(ctx, paid.paymentIntentID, enums.PaymentStatusSucceeded, nil)
			if err != nil {
				return err
			}
			if !moved {
				m.logg.Warn(m.logg.WithField(ctx, "payment_intent_id", paid.paymentIntentID), "activation.payment_record_not_moved")
			}
			if err := profilesRepo.AddPaid(ctx, userID, paid.amount); err != nil {
				return err
			}
		}

		if r.Kind() == enums.RedeemableKindFlashDeal {
			if err := m.offers.WithTx(tx).IncrementSold(ctx, r.ID()); err != nil {
				if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) || paid == nil {
					return err
				}
				// the payment is already captured; honour it even if the deal sold out meanwhile
				m.logg.Warn(ctx, "activation.flash_deal_oversold")
			}
		}
		return nil
	})
	if err != nil {
		if paid != nil && db.IsUniqueViolation(err, activationIntentConstraint) {
			found, lookupErr := m.profiles.ActivationByPaymentIntent(ctx, paid.paymentIntentID)
			if lookupErr == nil && found != nil {
				return &Completion{Record: NewRecordView(*found)}, nil
			}
		}
		return nil, err
	}
	if prior != nil {
		return &Completion{Record: NewRecordView(*prior)}, nil
	}

	celebrate := m.markCelebrated(userID)
	m.metrics.IncCompleted(r.Kind().String())
	m.logg.Info(m.logg.WithFields(ctx, map[string]any{
		"user_id":      userID.String(),
		"offer_id":     r.ID().String(),
		"saved_amount": saved.StringFixed(2),
		"celebrate":    celebrate,
	}), "activation.completed")
	m.publish(ctx, events.TypeActivationCompleted, completedEvent{
		UserID:          userID,
		OfferID:         r.ID(),
		Kind:            r.Kind(),
		OfferName:       r.Name(),
		SavedAmount:     saved,
		BlockedUntil:    record.BlockedUntil,
		PaymentIntentID: record.PaymentIntentID,
	})

	return &Completion{Record: NewRecordView(*record), Celebrate: celebrate}, nil
}

// markCelebrated reports true the first time userID completes an activation
// in this process.
func (m *Machine) markCelebrated(userID uuid.UUID) bool {
	seen, _ := m.celebrated.ContainsOrAdd(userID, struct{}{})
	return !seen
}

type completedEvent struct {
	UserID          uuid.UUID            `json:"user_id"`
	OfferID         uuid.UUID            `json:"offer_id"`
	Kind            enums.RedeemableKind `json:"kind"`
	OfferName       string               `json:"offer_name"`
	SavedAmount     decimal.Decimal      `json:"saved_amount"`
	BlockedUntil    time.Time            `json:"blocked_until"`
	PaymentIntentID *string              `json:"payment_intent_id,omitempty"`
}

func (m *Machine) publish(ctx context.Context, eventType events.Type, data any) {
	if err := m.publisher.Publish(ctx, events.NewEnvelope(eventType, m.clock.Now(), data)); err != nil {
		m.logg.Error(ctx, "activation.publish_failed", err)
	}
}

// writeFailure reports a store failure after a captured payment. The payment
// is not rolled back; the next signal for the intent retries the write.
func (m *Machine) writeFailure(ctx context.Context, err error) error {
	m.logg.Error(ctx, "activation.write_after_payment_failed", err)
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeDependency && typed.Code() != pkgerrors.CodeInternal {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment received but the activation could not be saved yet; it will be retried").
		WithDetails(map[string]any{"warning": "payment_recorded_activation_pending"})
}

// Tick completes every activation whose countdown has expired and sweeps
// pending contexts older than the TTL. It returns the number of completions.
func (m *Machine) Tick(ctx context.Context) int {
	now := m.clock.Now()

	m.mu.Lock()
	var due []*activatingFlow
	for _, flow := range m.activating {
		if flow.completing {
			continue
		}
		if flow.timer.Tick(now).Expired {
			flow.completing = true
			due = append(due, flow)
		}
	}
	swept := m.pending.sweep(now, m.pendingTTL)
	m.metrics.SetPending(m.pending.len())
	m.mu.Unlock()

	if swept > 0 {
		m.logg.Info(m.logg.WithField(ctx, "swept", swept), "activation.pending_swept")
	}

	completed := 0
	for _, flow := range due {
		if _, err := m.finish(ctx, flow); err == nil {
			completed++
		}
	}
	return completed
}

// finish completes a flow the caller has claimed by setting completing.
// Failed writes stay in the activating map and are retried by later ticks.
func (m *Machine) finish(ctx context.Context, flow *activatingFlow) (*Completion, error) {
	ctx = m.logg.WithFields(ctx, map[string]any{
		"user_id":  flow.userID.String(),
		"offer_id": flow.redeemable.ID().String(),
	})
	if pi := flow.paymentIntentID(); pi != "" {
		ctx = m.logg.WithPaymentIntentID(ctx, pi)
	}

	completion, err := m.completeActivation(ctx, flow.userID, flow.redeemable, flow.paid, flow.timer.Deadline())

	m.mu.Lock()
	defer m.mu.Unlock()
	flow.completing = false
	key := flow.key()
	if err == nil {
		if m.activating[key] == flow {
			delete(m.activating, key)
		}
		return completion, nil
	}

	flow.attempts++
	flow.lastErr = err
	if flow.attempts >= maxCompletionAttempts || pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		if m.activating[key] == flow {
			delete(m.activating, key)
		}
		m.logg.Error(m.logg.WithField(ctx, "attempts", flow.attempts), "activation.completion_abandoned", err)
		return nil, err
	}
	m.logg.Error(m.logg.WithField(ctx, "attempts", flow.attempts), "activation.completion_failed", err)
	return nil, err
}

// Run ticks the machine until ctx is done.
func (m *Machine) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}
