package http

import (
	"time"

	"github.com/benbjohnson/clock"
)

// rateLimiter is a fixed-window counter owned by a single socket's read loop.
type rateLimiter struct {
	limit  int
	window time.Duration
	clock  clock.Clock
	start  time.Time
	count  int
}

func newRateLimiter(limit int, clk clock.Clock) *rateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &rateLimiter{
		limit:  limit,
		window: time.Minute,
		clock:  clk,
		start:  clk.Now(),
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	if now := r.clock.Now(); now.Sub(r.start) >= r.window {
		r.start = now
		r.count = 0
	}
	r.count++
	return r.count <= r.limit
}
