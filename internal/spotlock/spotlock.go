// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

// Package spotlock provides per-spot mutual exclusion.
//
// Every read-modify-write of a spot's debounce record and active session
// happens under that spot's lock, so unrelated spots never contend.
// Entries are reference counted and removed when the last holder unlocks.
package spotlock

import (
	"sync"

	"github.com/tomtom215/parkwatch/internal/models"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out one mutex per spot.
type Locker struct {
	mu    sync.Mutex
	locks map[models.SpotID]*entry
}

// New creates a Locker.
func New() *Locker {
	return &Locker{locks: make(map[models.SpotID]*entry)}
}

// Lock blocks until spot's critical section is free and returns its unlock func.
//
//	unlock := locks.Lock(spot)
//	defer unlock()
func (l *Locker) Lock(spot models.SpotID) func() {
	l.mu.Lock()
	e, ok := l.locks[spot]
	if !ok {
		e = &entry{}
		l.locks[spot] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.locks, spot)
			}
			l.mu.Unlock()
		})
	}
}

// Len returns the number of spots currently locked or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
