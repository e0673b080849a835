package app

import (
	"context"
	"time"
)

// rateWindow is the rolling window length for all rate-limited actions.
const rateWindow = time.Hour

// RateLimiter throttles per (identifier, action) inside a rolling hour.
// It is advisory: slight undercounting under heavy concurrency is fine,
// it is an abuse deterrent, not a billing primitive.
type RateLimiter struct {
	store Store
	limit int
	now   func() time.Time
}

func NewRateLimiter(store Store, limit int) *RateLimiter {
	return &RateLimiter{store: store, limit: limit, now: time.Now}
}

// Allow counts one action and reports whether the caller is under the limit.
func (l *RateLimiter) Allow(ctx context.Context, identifier, action string) (bool, error) {
	return l.store.TakeRateToken(ctx, identifier, action, l.now(), rateWindow, l.limit)
}
