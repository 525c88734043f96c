// Package ratelimit implements the token bucket gating calls to the external
// enrichment service.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/entrylevelhq/jobcrawler/internal/telemetry"
)

// Limiter bounds enrichment calls to a fixed number of operations per rolling
// window. It is safe for concurrent callers; excess callers queue until a
// token refills. One instance is constructed at startup and shared by every
// enrichment call in a run.
type Limiter struct {
	limit int
	lim   *rate.Limiter
}

// New creates a Limiter allowing opsPerWindow operations per window. A full
// burst is available up front, then tokens refill at window/opsPerWindow.
func New(opsPerWindow int, window time.Duration) *Limiter {
	if opsPerWindow <= 0 {
		opsPerWindow = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	interval := window / time.Duration(opsPerWindow)
	return &Limiter{
		limit: opsPerWindow,
		lim:   rate.NewLimiter(rate.Every(interval), opsPerWindow),
	}
}

// Acquire blocks until a token is available, respecting the context.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := l.lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		telemetry.ObserveRateLimitDelay(waited)
	}
	return nil
}

// Limit returns the configured operations per window.
func (l *Limiter) Limit() int {
	return l.limit
}
