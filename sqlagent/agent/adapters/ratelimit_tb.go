package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	ports "github.com/nagyist/agentscope/sqlagent/agent/ports"
)

// ErrRateLimitExceeded is returned when no token is available for a key.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// TokenBucket rate-limits per key with a continuously refilling budget:
// instead of ticking whole tokens in, each Acquire settles the fractional
// budget accrued since the key was last touched. A zero refill rate
// disables refilling, leaving a fixed budget per key.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate time.Duration // time to accrue one full token
	state      map[string]*bucketState
}

type bucketState struct {
	available float64
	updated   time.Time
}

func NewTokenBucket(capacity int, refillRate time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		state:      make(map[string]*bucketState),
	}
}

// Acquire spends one token for key or fails immediately. The release func
// hands the token back, capped at capacity.
func (tb *TokenBucket) Acquire(ctx context.Context, key string) (func(), error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	b := tb.settle(key, time.Now())
	if b.available < 1 {
		return nil, ErrRateLimitExceeded
	}
	b.available--

	release := func() {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		b.available = min(b.available+1, tb.capacity)
	}
	return release, nil
}

// settle brings the key's budget up to date with the accrued refill.
// Callers hold tb.mu.
func (tb *TokenBucket) settle(key string, now time.Time) *bucketState {
	b, ok := tb.state[key]
	if !ok {
		b = &bucketState{available: tb.capacity, updated: now}
		tb.state[key] = b
		return b
	}
	if tb.refillRate > 0 {
		accrued := float64(now.Sub(b.updated)) / float64(tb.refillRate)
		b.available = min(b.available+accrued, tb.capacity)
	}
	b.updated = now
	return b
}

var _ ports.RateLimiter = (*TokenBucket)(nil)
