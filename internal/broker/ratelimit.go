// Package broker provides the per-login rate limiting and retry machinery
// shared by any broker client implementation (spec §4.2, §5). The concrete
// Questrade client lives in internal/broker/questrade and embeds a Limiter
// from this package per login.
package broker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimiterConfig tunes the cooperative limiter for one login.
type LimiterConfig struct {
	MaxConcurrent int           // bounded semaphore size, default 3
	MinSpacing    time.Duration // minimum gap between call starts, default 200ms
}

// DefaultLimiterConfig matches the defaults spec §5 calls out as "suitable
// for the broker's published quota".
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{MaxConcurrent: 3, MinSpacing: 200 * time.Millisecond}
}

// Limiter serializes broker calls for a single login: a bounded semaphore
// caps concurrency, and a token-bucket rate.Limiter enforces the minimum
// spacing between call starts.
type Limiter struct {
	sem  chan struct{}
	rate *rate.Limiter
}

// NewLimiter builds a Limiter from cfg, filling in defaults for zero values.
func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.MinSpacing <= 0 {
		cfg.MinSpacing = 200 * time.Millisecond
	}
	return &Limiter{
		sem:  make(chan struct{}, cfg.MaxConcurrent),
		rate: rate.NewLimiter(rate.Every(cfg.MinSpacing), 1),
	}
}

// Acquire blocks until both the concurrency slot and the spacing token are
// available, or ctx is cancelled. The returned release func must be called
// exactly once to free the concurrency slot.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := l.rate.Wait(ctx); err != nil {
		<-l.sem
		return nil, err
	}

	return func() { <-l.sem }, nil
}

// Registry hands out one Limiter per login id, creating it lazily, so each
// login's request pipeline is independent (spec §5: "one slow login cannot
// stall others").
type Registry struct {
	mu       sync.Mutex
	cfg      LimiterConfig
	limiters map[string]*Limiter
}

// NewRegistry creates a Registry that builds limiters with cfg.
func NewRegistry(cfg LimiterConfig) *Registry {
	return &Registry{cfg: cfg, limiters: map[string]*Limiter{}}
}

// For returns the Limiter for loginID, creating it on first use.
func (r *Registry) For(loginID string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[loginID]
	if !ok {
		l = NewLimiter(r.cfg)
		r.limiters[loginID] = l
	}
	return l
}
