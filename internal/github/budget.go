package github

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	// AuthenticatedBudget and AnonymousBudget are GitHub's hourly REST quotas.
	AuthenticatedBudget = 5000
	AnonymousBudget     = 60

	// trialInterval spaces the single requests let through after an unobserved
	// reset while no response reports fresh headers.
	trialInterval = 30 * time.Second
)

// RateBudget tracks the REST quota GitHub reports in X-RateLimit-* and
// Retry-After headers. Acquire blocks once the quota is spent until the reset
// time passes or a response reports more headroom.
type RateBudget struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	cooldown  time.Time
	// lastTrial is when the last request allowed past an unobserved reset was
	// handed out. Zero until then, and again after every Observe that changes
	// the budget.
	lastTrial time.Time
	changed   chan struct{}
	now       func() time.Time
}

// NewRateBudget starts with remaining requests and a reset one hour out.
func NewRateBudget(remaining int) *RateBudget {
	return &RateBudget{
		remaining: remaining,
		reset:     time.Now().Add(time.Hour),
		changed:   make(chan struct{}),
		now:       time.Now,
	}
}

func (b *RateBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Acquire takes one request from the budget.
func (b *RateBudget) Acquire(ctx context.Context) error {
	if ctx == nil {
		return errors.New("rate budget: ctx is nil")
	}
	if b == nil || b.changed == nil || b.now == nil {
		return errors.New("rate budget: not initialized (use NewRateBudget)")
	}

	for {
		b.mu.Lock()
		now := b.now()
		ch := b.changed

		var until time.Time
		switch {
		case now.Before(b.cooldown):
			until = b.cooldown
		case b.remaining > 0:
			b.remaining--
			b.mu.Unlock()
			return nil
		case now.Before(b.reset):
			until = b.reset
		case b.lastTrial.IsZero() || !now.Before(b.lastTrial.Add(trialInterval)):
			b.lastTrial = now
			b.mu.Unlock()
			return nil
		default:
			until = b.lastTrial.Add(trialInterval)
		}
		b.mu.Unlock()

		if err := waitUntil(ctx, now, until, ch); err != nil {
			return err
		}
	}
}

// waitUntil returns when until passes, ch is closed or ctx ends.
func waitUntil(ctx context.Context, now, until time.Time, ch <-chan struct{}) error {
	var expired <-chan time.Time
	if !until.IsZero() {
		timer := time.NewTimer(max(until.Sub(now), 0))
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
	case <-expired:
	}
	return nil
}

// Observe folds the rate limit headers of resp into the budget and wakes any
// waiters when something changed.
func (b *RateBudget) Observe(resp *http.Response) {
	if b == nil || resp == nil || b.now == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false
	if secs, ok := positiveInt(resp.Header.Get("Retry-After")); ok {
		if until := b.now().Add(time.Duration(secs) * time.Second); until.After(b.cooldown) {
			b.cooldown = until
			changed = true
		}
	}
	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n != b.remaining {
			b.remaining = n
			changed = true
		}
	}
	if secs, ok := positiveInt(resp.Header.Get("X-RateLimit-Reset")); ok {
		if reset := time.Unix(int64(secs), 0); !reset.Equal(b.reset) {
			b.reset = reset
			changed = true
		}
	}

	if changed {
		b.lastTrial = time.Time{}
		close(b.changed)
		b.changed = make(chan struct{})
	}
}

func positiveInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
