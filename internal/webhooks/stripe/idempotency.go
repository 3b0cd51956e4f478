package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kairos100/swissluca-backend/pkg/redis"
)

// EventGuard deduplicates webhook deliveries by event id.
type EventGuard interface {
	// CheckAndMark reports true when the event was already seen.
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	// Delete forgets the event so a failed delivery can be retried.
	Delete(ctx context.Context, eventID string) error
}

// IdempotencyGuard is the Redis-backed EventGuard shared by every API instance.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope}, nil
}

func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, eventID))
}

// MemoryGuard keeps recently seen event ids in process. It is used when Redis
// is not configured; payment handling stays idempotent on its own, the guard
// only saves redundant work.
type MemoryGuard struct {
	mu   sync.Mutex
	seen *lru.Cache[string, struct{}]
}

func NewMemoryGuard(capacity int) (*MemoryGuard, error) {
	if capacity <= 0 {
		capacity = 4096
	}
	seen, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, fmt.Errorf("event cache: %w", err)
	}
	return &MemoryGuard{seen: seen}, nil
}

func (g *MemoryGuard) CheckAndMark(_ context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen.Contains(eventID) {
		return true, nil
	}
	g.seen.Add(eventID, struct{}{})
	return false, nil
}

func (g *MemoryGuard) Delete(_ context.Context, eventID string) error {
	g.mu.Lock()
	g.seen.Remove(eventID)
	g.mu.Unlock()
	return nil
}
