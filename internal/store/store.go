// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

// Package store holds current and historical parking sessions.
//
// The store is the single source of truth for session state. It enforces
// the storage-level invariants on every Save:
//
//   - at most one session per spot has a nil EndTime
//   - StartTime and SpotID never change after creation
//   - a terminated session is never modified again
//
// Sessions are never deleted. Read-modify-write sequences for one spot are
// serialized by the caller (see package spotlock); the store only keeps its
// own indexes consistent.
//
// Two backends are provided: MemoryStore for tests and single-node
// deployments without durability, and BadgerStore for durable storage.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tomtom215/parkwatch/internal/models"
)

var (
	// ErrNotFound is returned when no session matches the lookup.
	ErrNotFound = errors.New("session not found")

	// ErrActiveSessionExists is returned when saving an open session for a
	// spot that already has a different open session.
	ErrActiveSessionExists = errors.New("spot already has an active session")

	// ErrImmutableField is returned when a save would change StartTime or SpotID.
	ErrImmutableField = errors.New("immutable session field changed")

	// ErrSessionClosed is returned when saving over a terminated session.
	ErrSessionClosed = errors.New("session already terminated")

	// ErrInvalidSession is returned for sessions missing an ID or spot.
	ErrInvalidSession = errors.New("invalid session")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
)

// Filter narrows List results. The zero value lists everything.
type Filter struct {
	SpotID     models.SpotID
	ActiveOnly bool
	// Limit caps the result size. Zero means no limit.
	Limit int
}

func (f Filter) matches(s *models.ParkingSession) bool {
	if f.SpotID != "" && s.SpotID != f.SpotID {
		return false
	}
	if f.ActiveOnly && !s.IsActive() {
		return false
	}
	return true
}

// Store is the session persistence contract.
type Store interface {
	// Active returns the open session for spot, or ErrNotFound.
	Active(ctx context.Context, spot models.SpotID) (*models.ParkingSession, error)

	// Get returns a session by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.ParkingSession, error)

	// Save inserts or updates a session.
	Save(ctx context.Context, s *models.ParkingSession) error

	// List returns sessions matching f, oldest first.
	List(ctx context.Context, f Filter) ([]*models.ParkingSession, error)

	// Ping reports whether the store can serve requests.
	Ping(ctx context.Context) error

	Close() error
}

// checkTransition validates replacing prev (nil on insert) with next.
func checkTransition(prev, next *models.ParkingSession) error {
	if next == nil || next.ID == "" || next.SpotID == "" {
		return ErrInvalidSession
	}
	if prev == nil {
		return nil
	}
	if !prev.IsActive() {
		return fmt.Errorf("%w: %s", ErrSessionClosed, prev.ID)
	}
	if !prev.StartTime.Equal(next.StartTime) {
		return fmt.Errorf("%w: start_time of %s", ErrImmutableField, prev.ID)
	}
	if prev.SpotID != next.SpotID {
		return fmt.Errorf("%w: spot_id of %s", ErrImmutableField, prev.ID)
	}
	return nil
}

// sortAndLimit orders sessions by start time then ID, then applies limit.
func sortAndLimit(sessions []*models.ParkingSession, limit int) []*models.ParkingSession {
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].StartTime.Equal(sessions[j].StartTime) {
			return sessions[i].StartTime.Before(sessions[j].StartTime)
		}
		return sessions[i].ID < sessions[j].ID
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions
}
