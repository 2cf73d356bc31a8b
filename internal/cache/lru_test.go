// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestLRU(capacity int, ttl time.Duration) (*LRU, *time.Time) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	c := NewLRU(capacity, ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestLRU_Seen(t *testing.T) {
	c, _ := newTestLRU(10, time.Minute)

	if c.Seen("a") {
		t.Fatal("first sighting reported as seen")
	}
	if !c.Seen("a") {
		t.Fatal("second sighting not reported")
	}
	if c.Seen("b") {
		t.Fatal("distinct key reported as seen")
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 2 {
		t.Errorf("Stats = %d/%d, want 1/2", hits, misses)
	}
}

func TestLRU_Expiry(t *testing.T) {
	c, now := newTestLRU(10, time.Minute)
	c.Seen("a")

	*now = now.Add(time.Minute)
	if !c.Seen("a") {
		t.Fatal("key expired at exactly the TTL")
	}
	*now = now.Add(time.Minute + time.Second)
	if c.Seen("a") {
		t.Fatal("expired key still reported")
	}
}

func TestLRU_EvictsLeastRecent(t *testing.T) {
	c, _ := newTestLRU(2, time.Hour)
	c.Seen("a")
	c.Seen("b")
	c.Seen("a") // refresh a
	c.Seen("c") // evicts b

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if !c.Forget("a") || !c.Forget("c") {
		t.Error("recent keys evicted")
	}
	if c.Forget("b") {
		t.Error("least recent key survived")
	}
}

func TestLRU_PurgeExpired(t *testing.T) {
	c, now := newTestLRU(10, time.Minute)
	c.Seen("a")
	*now = now.Add(30 * time.Second)
	c.Seen("b")
	*now = now.Add(45 * time.Second)

	if n := c.PurgeExpired(); n != 1 {
		t.Fatalf("PurgeExpired = %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestLRU_Defaults(t *testing.T) {
	c := NewLRU(0, 0)
	if c.capacity != defaultCapacity || c.ttl != defaultTTL {
		t.Errorf("defaults = %d/%v", c.capacity, c.ttl)
	}
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU(1000, time.Minute)
	var wg sync.WaitGroup
	firsts := make([]int, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if !c.Seen(fmt.Sprintf("k-%d", i)) {
					firsts[w]++
				}
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, n := range firsts {
		total += n
	}
	if total != 100 {
		t.Errorf("first sightings = %d, want 100", total)
	}
}
