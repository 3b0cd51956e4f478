package countdown

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Clock abstracts wall-clock reads so timers can be driven in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Remaining returns the time left until deadline, clamped at zero and rounded
// up to whole seconds so a display never shows 00:00 before expiry.
func Remaining(deadline, now time.Time) time.Duration {
	left := deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	rounded := left.Truncate(time.Second)
	if rounded < left {
		rounded += time.Second
	}
	return rounded
}

// Snapshot is the derived view of a countdown at one instant.
type Snapshot struct {
	Remaining time.Duration `json:"-"`
	Minutes   int           `json:"minutes"`
	Seconds   int           `json:"seconds"`
	Expired   bool          `json:"expired"`
}

// SnapshotAt derives the view for deadline at now without any side effects.
func SnapshotAt(deadline, now time.Time) Snapshot {
	left := Remaining(deadline, now)
	total := int(left / time.Second)
	return Snapshot{
		Remaining: left,
		Minutes:   total / 60,
		Seconds:   total % 60,
		Expired:   left == 0,
	}
}

// Display renders the remaining time as MM:SS.
func (s Snapshot) Display() string {
	return fmt.Sprintf("%02d:%02d", s.Minutes, s.Seconds)
}

// Countdown recomputes remaining time from an absolute deadline on every tick
// and invokes its expiry callback exactly once.
type Countdown struct {
	deadline time.Time
	onExpire func()

	mu    sync.Mutex
	fired bool
}

// New builds a countdown against an absolute deadline.
func New(deadline time.Time, onExpire func()) *Countdown {
	return &Countdown{deadline: deadline, onExpire: onExpire}
}

// Start converts d into a deadline relative to the clock's current time.
func Start(clock Clock, d time.Duration, onExpire func()) *Countdown {
	return New(clock.Now().Add(d), onExpire)
}

func (c *Countdown) Deadline() time.Time {
	return c.deadline
}

// Fired reports whether the expiry callback has already run.
func (c *Countdown) Fired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}

// Tick recomputes the snapshot for now. The first tick at or after the
// deadline fires the expiry callback; later ticks never fire it again.
func (c *Countdown) Tick(now time.Time) Snapshot {
	snap := SnapshotAt(c.deadline, now)
	if !snap.Expired {
		return snap
	}

	c.mu.Lock()
	first := !c.fired
	c.fired = true
	c.mu.Unlock()

	if first && c.onExpire != nil {
		c.onExpire()
	}
	return snap
}

// Run ticks the countdown every interval until it expires or ctx is done.
// The returned error is ctx.Err() when cancelled before expiry.
func (c *Countdown) Run(ctx context.Context, clock Clock, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	if c.Tick(clock.Now()).Expired {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if c.Tick(clock.Now()).Expired {
				return nil
			}
		}
	}
}
