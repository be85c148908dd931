package http

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestRateLimiterWindow(t *testing.T) {
	clk := clock.NewMock()
	r := newRateLimiter(2, clk)

	if !r.allow() || !r.allow() {
		t.Fatal("first two calls should pass")
	}
	if r.allow() {
		t.Fatal("third call should be limited")
	}

	clk.Add(time.Minute)
	if !r.allow() {
		t.Fatal("window should reset after a minute")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	r := newRateLimiter(0, nil)
	for range 100 {
		if !r.allow() {
			t.Fatal("disabled limiter must always allow")
		}
	}
}
