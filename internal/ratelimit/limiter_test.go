package ratelimit

import (
	"testing"
	"time"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func TestFixedWindowLimitsPerKey(t *testing.T) {
	clk := &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := NewFixedWindow(2, time.Minute, clk)

	if !limiter.Allow("create_offer:1") || !limiter.Allow("create_offer:1") {
		t.Fatalf("expected first two calls allowed")
	}
	if limiter.Allow("create_offer:1") {
		t.Fatalf("expected third call rejected")
	}
	if !limiter.Allow("create_offer:2") {
		t.Fatalf("expected other key unaffected")
	}

	clk.now = clk.now.Add(time.Minute)
	if !limiter.Allow("create_offer:1") {
		t.Fatalf("expected new window to allow")
	}
}

func TestFixedWindowRejectsEmptyKey(t *testing.T) {
	limiter := NewFixedWindow(1, time.Minute, nil)
	if limiter.Allow("") {
		t.Fatalf("expected empty key rejected")
	}
}

func TestSeparateLimitersDoNotShareState(t *testing.T) {
	a := NewFixedWindow(1, time.Minute, nil)
	b := NewFixedWindow(1, time.Minute, nil)
	if !a.Allow("k") || !b.Allow("k") {
		t.Fatalf("expected independent limiters")
	}
}
