package activation

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kairos100/swissluca-backend/internal/countdown"
	"github.com/kairos100/swissluca-backend/pkg/db/models"
	"github.com/kairos100/swissluca-backend/pkg/enums"
)

// IsBlocked reports whether a record's block is still in force at now.
func IsBlocked(now, blockedUntil time.Time) bool {
	return blockedUntil.After(now)
}

// StatusView is the derived state of one offer for one user.
type StatusView struct {
	OfferID          uuid.UUID             `json:"offer_id"`
	State            enums.ActivationState `json:"state"`
	PaymentIntentID  string                `json:"payment_intent_id,omitempty"`
	ActivatingUntil  *time.Time            `json:"activating_until,omitempty"`
	BlockedUntil     *time.Time            `json:"blocked_until,omitempty"`
	Remaining        string                `json:"remaining,omitempty"`
	RemainingSeconds int64                 `json:"remaining_seconds"`
	Warning          string                `json:"warning,omitempty"`
}

// Status derives the state from the activating map, the pending map and the
// latest record, in that order. An activating flow whose countdown has run
// out is completed before the state is read.
func (m *Machine) Status(ctx context.Context, userID, offerID uuid.UUID) (*StatusView, error) {
	now := m.clock.Now()
	key := flowKey{userID: userID, offerID: offerID}

	m.mu.Lock()
	flow, ok := m.activating[key]
	claimed := ok && !flow.completing && flow.timer.Tick(now).Expired
	if claimed {
		flow.completing = true
	}
	m.mu.Unlock()

	if claimed {
		_, _ = m.finish(ctx, flow)
	}

	m.mu.Lock()
	if flow, ok := m.activating[key]; ok {
		snap := flow.timer.Tick(now)
		until := flow.timer.Deadline()
		view := &StatusView{
			OfferID:          offerID,
			State:            enums.ActivationStateActivating,
			PaymentIntentID:  flow.paymentIntentID(),
			ActivatingUntil:  &until,
			Remaining:        snap.Display(),
			RemainingSeconds: int64(snap.Remaining / time.Second),
		}
		if flow.lastErr != nil {
			view.Warning = "activation is taking longer than expected; it will be saved shortly"
		}
		m.mu.Unlock()
		return view, nil
	}
	if p, ok := m.pending.get(userID, offerID); ok {
		m.mu.Unlock()
		return &StatusView{
			OfferID:         offerID,
			State:           enums.ActivationStatePaymentPending,
			PaymentIntentID: p.PaymentIntentID,
		}, nil
	}
	m.mu.Unlock()

	latest, err := m.profiles.LatestActivation(ctx, userID, offerID)
	if err != nil {
		return nil, err
	}
	if latest != nil && IsBlocked(now, latest.BlockedUntil) {
		snap := countdown.SnapshotAt(latest.BlockedUntil, now)
		until := latest.BlockedUntil
		return &StatusView{
			OfferID:          offerID,
			State:            enums.ActivationStateBlocked,
			BlockedUntil:     &until,
			Remaining:        snap.Display(),
			RemainingSeconds: int64(snap.Remaining / time.Second),
		}, nil
	}
	return &StatusView{OfferID: offerID, State: enums.ActivationStateAvailable}, nil
}

// LockedOffer is one currently blocked offer for display.
type LockedOffer struct {
	OfferID          uuid.UUID            `json:"offer_id"`
	OfferName        string               `json:"offer_name"`
	Kind             enums.RedeemableKind `json:"kind"`
	BlockedUntil     time.Time            `json:"blocked_until"`
	Remaining        string               `json:"remaining"`
	RemainingSeconds int64                `json:"remaining_seconds"`
}

// Locked lists the user's offers whose latest record still blocks them,
// soonest unblock first. Nothing is written.
func (m *Machine) Locked(ctx context.Context, userID uuid.UUID) ([]LockedOffer, error) {
	records, err := m.profiles.ListActivations(ctx, userID)
	if err != nil {
		return nil, err
	}
	return lockedAt(records, m.clock.Now()), nil
}

func lockedAt(records []models.ActivationRecord, now time.Time) []LockedOffer {
	latest := make(map[uuid.UUID]models.ActivationRecord, len(records))
	for _, r := range records {
		if prev, ok := latest[r.OfferID]; !ok || !r.ActivatedAt.Before(prev.ActivatedAt) {
			latest[r.OfferID] = r
		}
	}

	out := make([]LockedOffer, 0, len(latest))
	for _, r := range latest {
		if !IsBlocked(now, r.BlockedUntil) {
			continue
		}
		snap := countdown.SnapshotAt(r.BlockedUntil, now)
		out = append(out, LockedOffer{
			OfferID:          r.OfferID,
			OfferName:        r.OfferName,
			Kind:             r.Kind,
			BlockedUntil:     r.BlockedUntil,
			Remaining:        snap.Display(),
			RemainingSeconds: int64(snap.Remaining / time.Second),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BlockedUntil.Before(out[j].BlockedUntil)
	})
	return out
}

// History returns every activation record of the user, oldest first.
func (m *Machine) History(ctx context.Context, userID uuid.UUID) ([]models.ActivationRecord, error) {
	return m.profiles.ListActivations(ctx, userID)
}
