// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

/*
Package models defines the data structures shared across Parkwatch.

Key Components:

  - ParkingSession: authoritative record of one occupancy episode for a spot
  - SessionStatus: ActiveUnpaid, ActivePaid, Terminated (PendingConfirmation is debounce only)
  - PresenceEvent, PaymentEvent: inbound sensor and driver-app events
  - AlertEvent: UnpaidOverstay and PaidExpired notifications, also consumed back by the engine
  - SessionUpdateEvent: snapshot projection emitted on every session transition
  - APIResponse: standard HTTP response wrapper

Sessions are never deleted. A session leaves the active set only when the
termination watchdog sets EndTime.
*/
package models
