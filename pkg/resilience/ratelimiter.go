package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrRateLimited = errors.New("rate limited")

// LimiterOpts configures a token bucket.
type LimiterOpts struct {
	// Rate is tokens added per second.
	Rate float64
	// Burst is the bucket capacity.
	Burst int
}

// Limiter is a token bucket.
type Limiter struct {
	mu     sync.Mutex
	opts   LimiterOpts
	tokens float64
	last   time.Time
	now    func() time.Time
}

func NewLimiter(opts LimiterOpts) *Limiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Limiter{opts: opts, tokens: float64(opts.Burst), now: time.Now}
}

// Allow takes a token if one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is taken or ctx ends.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := time.Millisecond
		if l.opts.Rate > 0 {
			wait = max(wait, time.Duration((1-l.tokens)/l.opts.Rate*float64(time.Second)))
		}
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill must be called with mu held.
func (l *Limiter) refill() {
	now := l.now()
	if l.last.IsZero() {
		l.last = now
		return
	}
	l.tokens += now.Sub(l.last).Seconds() * l.opts.Rate
	if l.tokens > float64(l.opts.Burst) {
		l.tokens = float64(l.opts.Burst)
	}
	l.last = now
}

// idle reports whether the bucket was last touched before cutoff. Must hold mu.
func (l *Limiter) idle(cutoff time.Time) bool {
	return l.last.Before(cutoff)
}

// KeyedLimiter hands out one token bucket per key, typically a client IP.
// Buckets untouched for IdleTTL are dropped on the next sweep.
type KeyedLimiter struct {
	mu        sync.Mutex
	opts      LimiterOpts
	idleTTL   time.Duration
	buckets   map[string]*Limiter
	lastSweep time.Time
	now       func() time.Time
}

// NewKeyedLimiter creates per-key buckets sharing opts.
func NewKeyedLimiter(opts LimiterOpts, idleTTL time.Duration) *KeyedLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &KeyedLimiter{
		opts:    opts,
		idleTTL: idleTTL,
		buckets: make(map[string]*Limiter),
		now:     time.Now,
	}
}

// Allow takes a token from key's bucket.
func (k *KeyedLimiter) Allow(key string) bool {
	k.mu.Lock()
	now := k.now()
	if now.Sub(k.lastSweep) >= k.idleTTL {
		k.sweep(now)
	}
	l, ok := k.buckets[key]
	if !ok {
		l = NewLimiter(k.opts)
		l.now = k.now
		k.buckets[key] = l
	}
	k.mu.Unlock()
	return l.Allow()
}

// Len is the number of live buckets.
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// sweep must be called with k.mu held.
func (k *KeyedLimiter) sweep(now time.Time) {
	cutoff := now.Add(-k.idleTTL)
	for key, l := range k.buckets {
		l.mu.Lock()
		stale := l.idle(cutoff)
		l.mu.Unlock()
		if stale {
			delete(k.buckets, key)
		}
	}
	k.lastSweep = now
}
