// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

// Package debounce suppresses short presence blips before a spot is
// considered occupied.
//
// The Gate remembers, per spot, when the current detection run started.
// A run is confirmed once an observation arrives at least the confirmation
// window after the first one; the confirmed start time is retroactive.
// Confirmation clears the record so the next run starts fresh.
//
// Sensors send no "spot empty" signal. The Gate treats a gap longer than
// ResetGap between consecutive observations as the end of a run, so a car
// that leaves before confirmation does not lend its start time to the next
// arrival. EvictStale bounds memory for runs that never confirm.
package debounce

import (
	"sync"
	"time"

	"github.com/tomtom215/parkwatch/internal/models"
)

// Outcome is the Gate's verdict for one observation.
type Outcome int

const (
	// StillPending means the run has not yet lasted the confirmation window.
	StillPending Outcome = iota
	// Confirmed means the run qualified; Result.StartTime is its first observation.
	Confirmed
)

func (o Outcome) String() string {
	if o == Confirmed {
		return "confirmed"
	}
	return "pending"
}

// Result is returned by Observe.
type Result struct {
	Outcome   Outcome
	StartTime time.Time
}

// Config holds Gate timing.
type Config struct {
	// ConfirmationWindow is the continuous presence needed to confirm.
	ConfirmationWindow time.Duration

	// ResetGap discards a pending run when consecutive observations are
	// further apart than this. Zero disables the reset.
	ResetGap time.Duration
}

type record struct {
	firstSeen time.Time
	lastSeen  time.Time
}

// Gate tracks pending detection runs. Safe for concurrent use; callers that
// combine Gate and session state for one spot serialize on their own lock.
type Gate struct {
	mu      sync.Mutex
	cfg     Config
	pending map[models.SpotID]*record
}

// NewGate creates a Gate.
func NewGate(cfg Config) *Gate {
	return &Gate{
		cfg:     cfg,
		pending: make(map[models.SpotID]*record),
	}
}

// Observe records a presence observation for spot and reports whether the
// run it belongs to is now confirmed.
func (g *Gate) Observe(spot models.SpotID, observedAt time.Time) Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.pending[spot]
	if !ok || g.expired(rec, observedAt) {
		g.pending[spot] = &record{firstSeen: observedAt, lastSeen: observedAt}
		return Result{Outcome: StillPending}
	}

	// A late observation can only extend the run backwards within the reset gap.
	if observedAt.Before(rec.firstSeen) {
		if g.cfg.ResetGap == 0 || rec.firstSeen.Sub(observedAt) <= g.cfg.ResetGap {
			rec.firstSeen = observedAt
		}
	}
	if observedAt.After(rec.lastSeen) {
		rec.lastSeen = observedAt
	}

	if observedAt.Sub(rec.firstSeen) >= g.cfg.ConfirmationWindow {
		delete(g.pending, spot)
		return Result{Outcome: Confirmed, StartTime: rec.firstSeen}
	}
	return Result{Outcome: StillPending}
}

// expired reports whether observedAt falls after a gap that ends rec's run.
func (g *Gate) expired(rec *record, observedAt time.Time) bool {
	return g.cfg.ResetGap > 0 && observedAt.Sub(rec.lastSeen) > g.cfg.ResetGap
}

// Restore reinstates a run that was confirmed but could not be turned into a
// session. A redelivered observation then confirms it again.
func (g *Gate) Restore(spot models.SpotID, firstSeen, lastSeen time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending[spot] = &record{firstSeen: firstSeen, lastSeen: lastSeen}
}

// Evict drops the pending run for spot. Returns false if there was none.
func (g *Gate) Evict(spot models.SpotID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.pending[spot]; !ok {
		return false
	}
	delete(g.pending, spot)
	return true
}

// EvictStale drops every pending run whose last observation is before cutoff
// and returns how many were removed.
func (g *Gate) EvictStale(cutoff time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for spot, rec := range g.pending {
		if rec.lastSeen.Before(cutoff) {
			delete(g.pending, spot)
			n++
		}
	}
	return n
}

// Pending returns the first-seen time of spot's pending run.
func (g *Gate) Pending(spot models.SpotID) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.pending[spot]
	if !ok {
		return time.Time{}, false
	}
	return rec.firstSeen, true
}

// Len returns the number of pending runs.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}
