// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

// Package cache provides a bounded, expiring key set used to suppress
// duplicate message deliveries.
package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	defaultCapacity = 10000
	defaultTTL      = 5 * time.Minute
)

type entry struct {
	key       string
	expiresAt time.Time
}

// LRU remembers keys for a TTL, evicting the least recently seen key once
// capacity is reached. Safe for concurrent use.
type LRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = most recent
	items    map[string]*list.Element
	now      func() time.Time

	hits   int64
	misses int64
}

// NewLRU creates an LRU. Non-positive arguments select the defaults.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &LRU{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
		now:      time.Now,
	}
}

// Seen reports whether key was recorded within the TTL. An unseen or
// expired key is recorded and false is returned.
func (c *LRU) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		if !now.After(e.expiresAt) {
			c.order.MoveToFront(el)
			c.hits++
			return true
		}
		c.remove(el)
	}

	c.items[key] = c.order.PushFront(&entry{key: key, expiresAt: now.Add(c.ttl)})
	for len(c.items) > c.capacity {
		c.remove(c.order.Back())
	}
	c.misses++
	return false
}

// Forget drops key. Returns false if it was not present.
func (c *LRU) Forget(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.remove(el)
	return true
}

// PurgeExpired removes every expired key and returns how many were removed.
func (c *LRU) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*entry).expiresAt) {
			c.remove(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Len returns the number of tracked keys, expired ones included.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns hit and miss counts.
func (c *LRU) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// must hold c.mu
func (c *LRU) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
