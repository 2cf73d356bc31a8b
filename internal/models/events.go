// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PresenceEvent is a sensor detection for a spot.
type PresenceEvent struct {
	SpotID     SpotID    `json:"spot_id" validate:"required,spotid"`
	ObservedAt time.Time `json:"observed_at"`
}

// PaymentEvent is a driver-app payment confirmation.
// A nil or non-positive Amount buys zero minutes.
type PaymentEvent struct {
	Plate     string           `json:"plate" validate:"required,max=32"`
	SpotID    SpotID           `json:"spot_id" validate:"required,spotid"`
	Amount    *decimal.Decimal `json:"amount"`
	Timestamp time.Time        `json:"timestamp"`
}

// AlertKind tags an AlertEvent.
type AlertKind string

const (
	AlertUnpaidOverstay AlertKind = "UNPAID_OVERSTAY"
	AlertPaidExpired    AlertKind = "PAID_EXPIRED"
)

// Valid reports whether k is a known alert kind.
func (k AlertKind) Valid() bool {
	return k == AlertUnpaidOverstay || k == AlertPaidExpired
}

// AlertEvent is emitted by the overstay monitor. The same shape is consumed
// back by the lifecycle controller.
type AlertEvent struct {
	Kind      AlertKind `json:"kind" validate:"required,alertkind"`
	SpotID    SpotID    `json:"spot_id" validate:"required,spotid"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUnpaidOverstayAlert builds the alert raised when the grace period runs out.
func NewUnpaidOverstayAlert(spot SpotID, grace time.Duration, at time.Time) AlertEvent {
	return AlertEvent{
		Kind:      AlertUnpaidOverstay,
		SpotID:    spot,
		Message:   fmt.Sprintf("Vehicle in spot %s unpaid for > %s.", spot, humanDuration(grace)),
		Timestamp: at,
	}
}

// NewPaidExpiredAlert builds the alert raised when a paid window lapses.
func NewPaidExpiredAlert(spot SpotID, paidUntil, at time.Time) AlertEvent {
	return AlertEvent{
		Kind:      AlertPaidExpired,
		SpotID:    spot,
		Message:   fmt.Sprintf("Paid time for spot %s expired at %s.", spot, paidUntil.UTC().Format(time.RFC3339)),
		Timestamp: at,
	}
}

// humanDuration renders whole minutes as "5 minutes" and anything else via Duration.String.
func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}

// SessionUpdateEvent is the snapshot emitted on every session transition.
type SessionUpdateEvent struct {
	SessionID string           `json:"session_id" validate:"required"`
	Status    SessionStatus    `json:"status" validate:"required"`
	Plate     string           `json:"plate,omitempty"`
	SpotID    SpotID           `json:"spot_id" validate:"required"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	PaidUntil *time.Time       `json:"paid_until,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
