// ABOUTME: Thread-safe TTL cache for suppressing duplicate sync submissions.
// ABOUTME: Keys are conversation digests; a hit means the digest was already sent.

package dedupe

import (
	"sync"
	"time"
)

// Cache is a thread-safe, TTL-based, size-limited set of seen keys. The
// daily syncer keys it by conversation and content revision so an
// unchanged conversation is submitted at most once per TTL window.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache with the given TTL and maximum size. A background
// goroutine sweeps expired entries once a minute until Close.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Check returns true if the key has been seen and is not expired.
func (c *Cache) Check(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts, ok := c.seen[key]
	return ok && time.Since(ts) < c.ttl
}

// CheckAndMark atomically checks whether the key was seen and marks it if
// not. Returns true for a duplicate, false if the key is new (and now
// marked). Atomic to avoid check/mark races between concurrent syncs.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, ok := c.seen[key]; ok && time.Since(ts) < c.ttl {
		return true
	}
	c.markLocked(key)
	return false
}

// Mark records the key as seen.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key)
}

// markLocked must be called with mu held.
func (c *Cache) markLocked(key string) {
	if len(c.seen) >= c.maxSize {
		c.evictLocked()
	}
	c.seen[key] = time.Now()
}

// evictLocked drops expired entries first; if nothing expired, it drops
// the oldest entry. Must be called with mu held.
func (c *Cache) evictLocked() {
	now := time.Now()
	evicted := false
	for key, ts := range c.seen {
		if now.Sub(ts) >= c.ttl {
			delete(c.seen, key)
			evicted = true
		}
	}
	if evicted {
		return
	}

	var oldestKey string
	var oldest time.Time
	for key, ts := range c.seen {
		if oldestKey == "" || ts.Before(oldest) {
			oldestKey = key
			oldest = ts
		}
	}
	if oldestKey != "" {
		delete(c.seen, oldestKey)
	}
}

// sweep periodically removes expired entries.
func (c *Cache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, ts := range c.seen {
				if now.Sub(ts) > c.ttl {
					delete(c.seen, key)
				}
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

// Close stops the background sweep. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
