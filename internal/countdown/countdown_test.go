package countdown

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestCountdown_SixtyTicksFireExactlyOnce(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	fired := 0
	timer := Start(clock, 60*time.Second, func() { fired++ })

	for i := 0; i < 59; i++ {
		clock.Advance(time.Second)
		snap := timer.Tick(clock.Now())
		require.False(t, snap.Expired, "tick %d", i+1)
	}
	require.Zero(t, fired)

	clock.Advance(time.Second)
	snap := timer.Tick(clock.Now())
	assert.True(t, snap.Expired)
	assert.Equal(t, 1, fired)

	// re-renders after expiry must not fire again
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		timer.Tick(clock.Now())
	}
	assert.Equal(t, 1, fired)
	assert.True(t, timer.Fired())
}

func TestCountdown_PastDeadlineExpiresImmediately(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fired := 0
	timer := New(now.Add(-5*time.Minute), func() { fired++ })

	snap := timer.Tick(now)
	assert.True(t, snap.Expired)
	assert.Equal(t, "00:00", snap.Display())
	assert.Equal(t, 1, fired)
}

func TestSnapshotAt_DisplayRoundsUp(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	snap := SnapshotAt(now.Add(15*time.Minute), now)
	assert.Equal(t, "15:00", snap.Display())

	snap = SnapshotAt(now.Add(90*time.Second+300*time.Millisecond), now)
	assert.Equal(t, 1, snap.Minutes)
	assert.Equal(t, 31, snap.Seconds)
	assert.False(t, snap.Expired)
}

func TestRemaining_IsPureFunctionOfDeadlineAndNow(t *testing.T) {
	deadline := time.Date(2025, 3, 1, 12, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Minute, Remaining(deadline, deadline.Add(-time.Minute)))
	assert.Zero(t, Remaining(deadline, deadline))
	assert.Zero(t, Remaining(deadline, deadline.Add(time.Hour)))
}

func TestCountdown_RunStopsOnCancel(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	timer := Start(clock, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := timer.Run(ctx, clock, time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, timer.Fired())
}

func TestCountdown_RunReturnsOnExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	done := make(chan struct{})
	timer := Start(clock, 2*time.Second, func() { close(done) })

	go func() {
		for i := 0; i < 3; i++ {
			clock.Advance(time.Second)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, timer.Run(ctx, clock, time.Millisecond))

	select {
	case <-done:
	default:
		t.Fatal("expiry callback did not run")
	}
}
