package cache

import (
	"sync"
	"time"

	"github.com/smallbiznis/escrow/internal/clock"
)

// Cache is a keyed store whose entries lapse after a TTL.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Len() int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is an in-process Cache bounded to maxEntries. When full, expired
// entries are dropped first, then the entry closest to expiry.
type TTLCache[K comparable, V any] struct {
	clock      clock.Clock
	maxEntries int

	mu    sync.Mutex
	items map[K]entry[V]
}

func NewTTLCache[K comparable, V any](maxEntries int, clk clock.Clock) *TTLCache[K, V] {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &TTLCache[K, V]{
		clock:      clk,
		maxEntries: maxEntries,
		items:      make(map[K]entry[V], maxEntries),
	}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	var zero V
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !now.Before(item.expiresAt) {
		delete(c.items, key)
		return zero, false
	}
	return item.value, true
}

// Set stores value until ttl elapses. A non-positive ttl removes the key.
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		c.Delete(key)
		return
	}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxEntries {
		c.evict(now)
	}
	c.items[key] = entry[V]{value: value, expiresAt: now.Add(ttl)}
}

func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// evict frees at least one slot; callers hold c.mu.
func (c *TTLCache[K, V]) evict(now time.Time) {
	var (
		victim    K
		victimAt  time.Time
		hasVictim bool
	)
	for key, item := range c.items {
		if !now.Before(item.expiresAt) {
			delete(c.items, key)
			continue
		}
		if !hasVictim || item.expiresAt.Before(victimAt) {
			victim, victimAt, hasVictim = key, item.expiresAt, true
		}
	}
	if len(c.items) >= c.maxEntries && hasVictim {
		delete(c.items, victim)
	}
}
