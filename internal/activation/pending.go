package activation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"

	"github.com/kairos100/swissluca-backend/internal/offers"
)

type flowKey struct {
	userID  uuid.UUID
	offerID uuid.UUID
}

// PendingPayment is the context kept between payment creation and the
// gateway's success or failure signal.
type PendingPayment struct {
	UserID          uuid.UUID
	Redeemable      offers.Redeemable
	UsagePrice      decimal.Decimal
	PaymentIntentID string
	OrderID         string
	ShowCountdown   bool
	CreatedAt       time.Time
}

func (p *PendingPayment) key() flowKey {
	return flowKey{userID: p.UserID, offerID: p.Redeemable.ID()}
}

// pendingStore is a bounded (user, offer) -> context map with a secondary
// index by payment intent. Callers serialize access.
type pendingStore struct {
	cache    *lru.Cache[flowKey, *PendingPayment]
	byIntent map[string]flowKey
}

func newPendingStore(capacity int) (*pendingStore, error) {
	if capacity <= 0 {
		capacity = 10000
	}
	s := &pendingStore{byIntent: make(map[string]flowKey)}
	cache, err := lru.NewWithEvict[flowKey, *PendingPayment](capacity, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("pending payment cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

func (s *pendingStore) onEvict(key flowKey, p *PendingPayment) {
	if current, ok := s.byIntent[p.PaymentIntentID]; ok && current == key {
		delete(s.byIntent, p.PaymentIntentID)
	}
}

// put replaces any context already held for the same (user, offer).
func (s *pendingStore) put(p *PendingPayment) {
	key := p.key()
	s.cache.Remove(key)
	s.cache.Add(key, p)
	s.byIntent[p.PaymentIntentID] = key
}

func (s *pendingStore) get(userID, offerID uuid.UUID) (*PendingPayment, bool) {
	return s.cache.Peek(flowKey{userID: userID, offerID: offerID})
}

// takeByIntent removes and returns the context created for paymentIntentID.
func (s *pendingStore) takeByIntent(paymentIntentID string) (*PendingPayment, bool) {
	key, ok := s.byIntent[paymentIntentID]
	if !ok {
		return nil, false
	}
	p, ok := s.cache.Peek(key)
	if !ok || p.PaymentIntentID != paymentIntentID {
		delete(s.byIntent, paymentIntentID)
		return nil, false
	}
	s.cache.Remove(key)
	return p, true
}

// sweep drops contexts created more than ttl before now.
func (s *pendingStore) sweep(now time.Time, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	removed := 0
	for _, key := range s.cache.Keys() {
		p, ok := s.cache.Peek(key)
		if !ok {
			continue
		}
		if now.Sub(p.CreatedAt) > ttl {
			s.cache.Remove(key)
			removed++
		}
	}
	return removed
}

func (s *pendingStore) len() int {
	return s.cache.Len()
}
