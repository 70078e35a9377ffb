// Package concurrency bounds how many invocations of a given function may
// run at once and, optionally, how fast new ones may start — the
// per-function analogue of the teacher's per-queue rate.Manager.
package concurrency

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config bounds one function's concurrency and rate.
type Config struct {
	// MaxConcurrency is the maximum number of in-flight invocations. Zero
	// means unbounded.
	MaxConcurrency int
	// RateLimit, if positive, caps invocation starts per second.
	RateLimit float64
	// RateBurst is the token bucket burst size; ignored if RateLimit == 0.
	RateBurst int
}

// Limiter enforces per-function concurrency and rate limits. The zero
// value is unusable; construct with NewLimiter.
type Limiter struct {
	mu      sync.Mutex
	configs map[string]Config
	slots   map[string]chan struct{}
	rates   map[string]*rate.Limiter
}

// NewLimiter returns a Limiter with no configured functions; unconfigured
// function ids are never limited.
func NewLimiter() *Limiter {
	return &Limiter{
		configs: make(map[string]Config),
		slots:   make(map[string]chan struct{}),
		rates:   make(map[string]*rate.Limiter),
	}
}

// Configure sets the limits for functionID, replacing any previous config.
func (l *Limiter) Configure(functionID string, cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.configs[functionID] = cfg
	if cfg.MaxConcurrency > 0 {
		l.slots[functionID] = make(chan struct{}, cfg.MaxConcurrency)
	} else {
		delete(l.slots, functionID)
	}
	if cfg.RateLimit > 0 {
		l.rates[functionID] = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	} else {
		delete(l.rates, functionID)
	}
}

// Acquire blocks until functionID may start a new invocation, respecting
// both its concurrency slot and its rate limit, or until ctx is done.
func (l *Limiter) Acquire(ctx context.Context, functionID string) (release func(), err error) {
	l.mu.Lock()
	slot := l.slots[functionID]
	limiter := l.rates[functionID]
	l.mu.Unlock()

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if slot != nil {
		select {
		case slot <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return func() { <-slot }, nil
	}
	return func() {}, nil
}
