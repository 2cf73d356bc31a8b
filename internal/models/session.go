// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpotID identifies a physical parking spot and its sensor.
type SpotID string

// SessionStatus is the lifecycle state of a parking session.
type SessionStatus string

const (
	// StatusPendingConfirmation describes a spot still inside the debounce
	// window. It never appears on a stored session.
	StatusPendingConfirmation SessionStatus = "PENDING_CONFIRMATION"
	StatusActiveUnpaid        SessionStatus = "ACTIVE_UNPAID"
	StatusActivePaid          SessionStatus = "ACTIVE_PAID"
	StatusTerminated          SessionStatus = "TERMINATED"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusPendingConfirmation, StatusActiveUnpaid, StatusActivePaid, StatusTerminated:
		return true
	}
	return false
}

// ParkingSession is one occupancy-to-departure episode for a spot.
//
// At most one session per spot has a nil EndTime. StartTime never changes
// after creation, and EndTime is written once by the termination watchdog.
type ParkingSession struct {
	ID           string           `json:"id"`
	SpotID       SpotID           `json:"spot_id"`
	Plate        string           `json:"plate,omitempty"`
	StartTime    time.Time        `json:"start_time"`
	EndTime      *time.Time       `json:"end_time,omitempty"`
	Status       SessionStatus    `json:"status"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	PaidUntil    *time.Time       `json:"paid_until,omitempty"`
	Alerted      bool             `json:"alerted"`
	LastActivity time.Time        `json:"last_activity"`

	// UnpaidSince anchors the unpaid grace period. It equals StartTime until
	// a paid window lapses, then moves to the regression time.
	UnpaidSince time.Time `json:"unpaid_since"`

	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the session is still open.
func (s *ParkingSession) IsActive() bool {
	return s.EndTime == nil
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (s *ParkingSession) Clone() *ParkingSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	if s.Amount != nil {
		a := *s.Amount
		c.Amount = &a
	}
	if s.PaidUntil != nil {
		t := *s.PaidUntil
		c.PaidUntil = &t
	}
	return &c
}

// UpdateEvent projects the session into the outbound snapshot.
func (s *ParkingSession) UpdateEvent(at time.Time) SessionUpdateEvent {
	ev := SessionUpdateEvent{
		SessionID: s.ID,
		Status:    s.Status,
		Plate:     s.Plate,
		SpotID:    s.SpotID,
		Timestamp: at,
	}
	if s.Amount != nil {
		a := *s.Amount
		ev.Amount = &a
	}
	if s.PaidUntil != nil {
		t := *s.PaidUntil
		ev.PaidUntil = &t
	}
	return ev
}
