// Package cache provides the single-flight TTL cache in front of the
// aggregation pipeline. Entries are keyed by (application, view, range);
// concurrent requests for one key share a single computation, and a stale
// entry can stand in for a failed recomputation within a bounded window.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key identifies one cached aggregation result.
type Key struct {
	App   string
	View  string
	Range string
}

// String renders the key for map and flight indexing.
func (k Key) String() string {
	return k.App + "/" + k.View + "/" + k.Range
}

// Status reports how a GetOrCompute call was satisfied.
type Status string

const (
	// StatusHit means a fresh entry was returned without computing.
	StatusHit Status = "hit"
	// StatusComputed means the value was (re)computed, possibly shared
	// with concurrent callers of the same key.
	StatusComputed Status = "computed"
	// StatusStale means computation failed and an expired entry within
	// the staleness allowance was served instead.
	StatusStale Status = "stale"
)

const (
	defaultTTL      = 30 * time.Second
	defaultMaxStale = 15 * time.Minute
)

type entry struct {
	payload    any
	computedAt time.Time
	expiresAt  time.Time
}

// Cache is safe for concurrent use. Payloads are never mutated in place;
// refreshes replace the whole entry.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group

	ttls       map[string]time.Duration
	defaultTTL time.Duration
	maxStale   time.Duration
	now        func() time.Time
}

// New builds a cache with per-view TTLs. Views absent from ttls use
// fallbackTTL; non-positive durations fall back to package defaults.
func New(ttls map[string]time.Duration, fallbackTTL, maxStale time.Duration) *Cache {
	if fallbackTTL <= 0 {
		fallbackTTL = defaultTTL
	}
	if maxStale <= 0 {
		maxStale = defaultMaxStale
	}
	return &Cache{
		entries:    make(map[string]entry),
		ttls:       ttls,
		defaultTTL: fallbackTTL,
		maxStale:   maxStale,
		now:        time.Now,
	}
}

// GetOrCompute returns the cached payload for key, computing it at most
// once across concurrent callers. A fresh entry short-circuits compute
// entirely. When compute fails and an expired entry younger than the
// staleness allowance exists, that entry is served with StatusStale
// instead of the error.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) (any, error)) (any, Status, error) {
	k := key.String()

	if payload, ok := c.fresh(k); ok {
		return payload, StatusHit, nil
	}

	v, err, _ := c.group.Do(k, func() (any, error) {
		// A concurrent flight may have refreshed the entry between the
		// freshness check and joining this flight.
		if payload, ok := c.fresh(k); ok {
			return payload, nil
		}
		payload, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.store(k, key.View, payload)
		return payload, nil
	})
	if err != nil {
		if payload, ok := c.staleUsable(k); ok {
			return payload, StatusStale, nil
		}
		return nil, StatusComputed, err
	}
	return v, StatusComputed, nil
}

// Invalidate drops the entry for key, forcing the next request to compute.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.String())
}

// Len reports the number of resident entries, for observability.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// fresh returns the payload if the entry exists and has not expired.
// Entries beyond the staleness allowance are evicted here; eviction is
// lazy, on access, with no background sweep.
func (c *Cache) fresh(k string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	now := c.now()
	if now.Before(e.expiresAt) {
		return e.payload, true
	}
	if now.Sub(e.computedAt) > c.maxStale {
		delete(c.entries, k)
	}
	return nil, false
}

// staleUsable returns an expired entry still inside the staleness allowance.
func (c *Cache) staleUsable(k string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.computedAt) > c.maxStale {
		delete(c.entries, k)
		return nil, false
	}
	return e.payload, true
}

func (c *Cache) store(k, view string, payload any) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k] = entry{
		payload:    payload,
		computedAt: now,
		expiresAt:  now.Add(c.ttl(view)),
	}
}

func (c *Cache) ttl(view string) time.Duration {
	if d, ok := c.ttls[view]; ok && d > 0 {
		return d
	}
	return c.defaultTTL
}
