package marketdata

import (
	"context"
	"sync"
	"time"
)

// waitSlack is added to every computed wait so the oldest call has
// definitely aged out when the waiter wakes.
const waitSlack = 100 * time.Millisecond

// RateLimiter bounds outbound calls to limit per rolling window. Callers
// that would exceed the limit block in Wait until the oldest call in the
// window ages out. Waiters are served in arrival order.
type RateLimiter struct {
	limit  int
	window time.Duration

	// turn admits one waiter at a time; blocked senders on a channel are
	// released in the order they arrived.
	turn chan struct{}

	mu    sync.Mutex
	calls []time.Time
	now   func() time.Time

	onWait func(time.Duration)
}

// NewRateLimiter creates a sliding-window limiter: limit calls per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		turn:   make(chan struct{}, 1),
		now:    time.Now,
	}
}

// OnWait registers a hook called with the total time a caller was blocked.
func (rl *RateLimiter) OnWait(fn func(time.Duration)) {
	rl.onWait = fn
}

// Wait blocks until a call slot is free and records the call. It returns
// ctx.Err() if the context ends first; no slot is consumed in that case.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	start := rl.now()

	select {
	case rl.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-rl.turn }()

	for {
		wait := rl.reserve()
		if wait <= 0 {
			if rl.onWait != nil {
				if blocked := rl.now().Sub(start); blocked > 0 {
					rl.onWait(blocked)
				}
			}
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve records a call and returns 0 if the window has room, otherwise
// returns how long to sleep before trying again.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.evict(now)
	if len(rl.calls) < rl.limit {
		rl.calls = append(rl.calls, now)
		return 0
	}
	return rl.calls[0].Add(rl.window).Sub(now) + waitSlack
}

func (rl *RateLimiter) evict(now time.Time) {
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(rl.calls) && !rl.calls[i].After(cutoff) {
		i++
	}
	rl.calls = rl.calls[i:]
}

// InWindow reports how many calls were made in the current window and the
// configured limit.
func (rl *RateLimiter) InWindow() (calls, limit int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.evict(rl.now())
	return len(rl.calls), rl.limit
}
