// Geodepot - Geospatial Data Staging and Catalog Tooling
// Copyright 2026 Dana K. (geodepot)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/geodepot/geodepot

// Package cache provides the in-memory response cache used by the tile and
// COG proxy endpoints. The implementation is a thread-safe LRU with TTL,
// O(1) for Get, Set, and eviction.
package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/geodepot/geodepot/internal/metrics"
)

// Response is a cached upstream response body with enough metadata to
// replay it.
type Response struct {
	Body         []byte
	ContentType  string
	CacheControl string
	StatusCode   int
}

type entry struct {
	key       string
	value     Response
	prev      *entry
	next      *entry
	expiresAt time.Time
}

// TileCache is a bounded LRU cache with TTL for upstream tile and object
// responses. A doubly-linked list keeps access order; a map gives O(1)
// lookups. head.next is the most recently used entry.
type TileCache struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration

	items map[string]*entry
	head  *entry
	tail  *entry

	hits      int64
	misses    int64
	evictions int64
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// NewTileCache creates a cache holding at most capacity responses, each
// valid for ttl.
func NewTileCache(capacity int, ttl time.Duration) *TileCache {
	if capacity <= 0 {
		capacity = 4096
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	c := &TileCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry, capacity),
		head:     &entry{},
		tail:     &entry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get retrieves a cached response. Expired entries are removed lazily.
// Found entries move to the front of the access order.
func (c *TileCache) Get(key string) (Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.items[key]
	if !exists {
		c.misses++
		metrics.TileCacheMisses.Inc()
		return Response{}, false
	}

	if time.Now().After(e.expiresAt) {
		c.removeEntry(e)
		c.misses++
		c.evictions++
		metrics.TileCacheMisses.Inc()
		metrics.TileCacheEvictions.Inc()
		return Response{}, false
	}

	c.moveToFront(e)
	c.hits++
	metrics.TileCacheHits.Inc()
	return e.value, true
}

// Set adds or replaces a cached response, evicting the least recently used
// entry when at capacity.
func (c *TileCache) Set(key string, resp Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.items[key]; exists {
		e.value = resp
		e.expiresAt = time.Now().Add(c.ttl)
		c.moveToFront(e)
		return
	}

	if len(c.items) >= c.capacity {
		lru := c.tail.prev
		if lru != c.head {
			c.removeEntry(lru)
			c.evictions++
			metrics.TileCacheEvictions.Inc()
		}
	}

	e := &entry{
		key:       key,
		value:     resp,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.items[key] = e
	c.pushFront(e)
	metrics.TileCacheEntries.Set(float64(len(c.items)))
}

// Delete removes a specific entry. Safe to call for missing keys.
func (c *TileCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.items[key]; exists {
		c.removeEntry(e)
		c.evictions++
		metrics.TileCacheEvictions.Inc()
	}
}

// Clear drops every entry.
func (c *TileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictions += int64(len(c.items))
	c.items = make(map[string]*entry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
	metrics.TileCacheEntries.Set(0)
}

// Len returns the current number of entries.
func (c *TileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// GetStats returns a snapshot of the cache counters.
func (c *TileCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   len(c.items),
	}
}

// HitRate returns the hit rate as a percentage.
func (c *TileCache) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

func (c *TileCache) removeEntry(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
	metrics.TileCacheEntries.Set(float64(len(c.items)))
}

func (c *TileCache) pushFront(e *entry) {
	e.next = c.head.next
	e.prev = c.head
	c.head.next.prev = e
	c.head.next = e
}

func (c *TileCache) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.pushFront(e)
}

// GenerateKey builds a compact cache key from a namespace and request path.
func GenerateKey(namespace, path string) string {
	hash := sha256.Sum256([]byte(path))
	return fmt.Sprintf("%s:%x", namespace, hash[:16])
}
