package ratelimit

import (
	"sync"
	"time"

	"github.com/smallbiznis/escrow/internal/clock"
)

// Limiter decides whether a keyed action may proceed.
type Limiter interface {
	Allow(key string) bool
}

// FixedWindow allows up to limit calls per key in each window.
type FixedWindow struct {
	limit  int
	window time.Duration
	clock  clock.Clock

	mu    sync.Mutex
	items map[string]*windowEntry
}

type windowEntry struct {
	windowStart time.Time
	count       int
}

func NewFixedWindow(limit int, window time.Duration, clk clock.Clock) *FixedWindow {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &FixedWindow{
		limit:  limit,
		window: window,
		clock:  clk,
		items:  make(map[string]*windowEntry),
	}
}

func (r *FixedWindow) Allow(key string) bool {
	if key == "" {
		return false
	}
	if r.limit <= 0 {
		return true
	}

	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.items[key]
	if entry == nil || now.Sub(entry.windowStart) >= r.window {
		entry = &windowEntry{windowStart: now}
		r.items[key] = entry
		r.evictExpired(now)
	}

	if entry.count >= r.limit {
		return false
	}

	entry.count++
	return true
}

// evictExpired drops stale keys; callers hold r.mu.
func (r *FixedWindow) evictExpired(now time.Time) {
	if len(r.items) < 1024 {
		return
	}
	for key, entry := range r.items {
		if now.Sub(entry.windowStart) >= r.window {
			delete(r.items, key)
		}
	}
}

// Unlimited never rejects.
type Unlimited struct{}

func (Unlimited) Allow(string) bool { return true }
