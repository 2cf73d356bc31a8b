// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/parkwatch/internal/debounce"
	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/metrics"
	"github.com/tomtom215/parkwatch/internal/models"
	"github.com/tomtom215/parkwatch/internal/store"
)

// Controller applies inbound events to session state.
type Controller struct {
	engine *Engine
}

// HandlePresence processes one sensor detection.
//
// With an active session the observation is a heartbeat: LastActivity moves
// forward to the observation time, clamped to now, and nothing is emitted.
// Otherwise the observation goes through the debounce gate and a confirmed
// run opens an ActiveUnpaid session starting at the run's first observation.
func (c *Controller) HandlePresence(ctx context.Context, ev models.PresenceEvent) error {
	e := c.engine
	active, unlock, err := e.lockedActive(ctx, ev.SpotID)
	defer unlock()

	now := e.now()
	observed := ev.ObservedAt
	if observed.IsZero() || observed.After(now) {
		observed = now
	}

	switch {
	case err == nil:
		return c.heartbeat(ctx, active, observed, now)
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("lookup active session for %s: %w", ev.SpotID, err)
	}

	res := e.gate.Observe(ev.SpotID, observed)
	metrics.DebounceObservations.WithLabelValues(res.Outcome.String()).Inc()
	metrics.DebouncePending.Set(float64(e.gate.Len()))
	if res.Outcome != debounce.Confirmed {
		return nil
	}

	s := &models.ParkingSession{
		ID:           e.newID(),
		SpotID:       ev.SpotID,
		StartTime:    res.StartTime,
		Status:       models.StatusActiveUnpaid,
		LastActivity: now,
		UnpaidSince:  res.StartTime,
		UpdatedAt:    now,
	}
	if err := e.store.Save(ctx, s); err != nil {
		// Put the run back so the redelivered event confirms again.
		e.gate.Restore(ev.SpotID, res.StartTime, observed)
		return fmt.Errorf("create session for %s: %w", ev.SpotID, err)
	}

	metrics.SessionTransitions.WithLabelValues(string(s.Status)).Inc()
	logging.Ctx(ctx).Info().
		Str("session_id", s.ID).
		Str("spot_id", string(s.SpotID)).
		Time("start_time", s.StartTime).
		Msg("Session opened")
	e.publisher.PublishSessionUpdate(ctx, s.UpdateEvent(now))
	return nil
}

func (c *Controller) heartbeat(ctx context.Context, s *models.ParkingSession, observed, now time.Time) error {
	if !observed.After(s.LastActivity) {
		return nil
	}
	s.LastActivity = observed
	s.UpdatedAt = now
	if err := c.engine.store.Save(ctx, s); err != nil {
		return fmt.Errorf("record heartbeat for %s: %w", s.SpotID, err)
	}
	return nil
}

// HandlePayment applies a payment to the spot's active session. The amount
// replaces any earlier one and PaidUntil is recomputed from StartTime.
// Returns ErrOrphanPayment when the spot has no active session.
func (c *Controller) HandlePayment(ctx context.Context, ev models.PaymentEvent) error {
	e := c.engine
	s, unlock, err := e.lockedActive(ctx, ev.SpotID)
	defer unlock()

	if errors.Is(err, store.ErrNotFound) {
		logging.Ctx(ctx).Warn().
			Str("spot_id", string(ev.SpotID)).
			Str("plate", ev.Plate).
			Msg("Dropping payment: no active session for spot")
		return fmt.Errorf("%w: spot %s", ErrOrphanPayment, ev.SpotID)
	}
	if err != nil {
		return fmt.Errorf("lookup active session for %s: %w", ev.SpotID, err)
	}

	now := e.now()
	paidUntil := PaidUntil(s.StartTime, ev.Amount, e.settings.PaymentRate)

	s.Plate = ev.Plate
	s.Amount = nil
	if ev.Amount != nil {
		a := *ev.Amount
		s.Amount = &a
	}
	s.PaidUntil = &paidUntil
	s.Status = models.StatusActivePaid
	s.Alerted = false
	s.UpdatedAt = now

	if err := e.store.Save(ctx, s); err != nil {
		return fmt.Errorf("apply payment for %s: %w", ev.SpotID, err)
	}

	metrics.SessionTransitions.WithLabelValues(string(s.Status)).Inc()
	logging.Ctx(ctx).Info().
		Str("session_id", s.ID).
		Str("spot_id", string(s.SpotID)).
		Str("plate", s.Plate).
		Time("paid_until", paidUntil).
		Msg("Payment applied")
	e.publisher.PublishSessionUpdate(ctx, s.UpdateEvent(now))
	return nil
}

// HandleAlert consumes an alert from the alert stream. A PaidExpired alert
// regresses a lapsed ActivePaid session to ActiveUnpaid, clears Alerted and
// restarts the unpaid grace period. Stale alerts and UnpaidOverstay alerts
// change nothing.
func (c *Controller) HandleAlert(ctx context.Context, ev models.AlertEvent) error {
	if ev.Kind != models.AlertPaidExpired {
		return nil
	}

	e := c.engine
	s, unlock, err := e.lockedActive(ctx, ev.SpotID)
	defer unlock()

	if errors.Is(err, store.ErrNotFound) {
		logging.Ctx(ctx).Debug().Str("spot_id", string(ev.SpotID)).Msg("Expiry alert for spot without active session")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup active session for %s: %w", ev.SpotID, err)
	}

	now := e.now()
	if s.Status != models.StatusActivePaid || s.PaidUntil == nil || !now.After(*s.PaidUntil) {
		logging.Ctx(ctx).Debug().
			Str("session_id", s.ID).
			Str("status", string(s.Status)).
			Msg("Ignoring stale expiry alert")
		return nil
	}

	s.Status = models.StatusActiveUnpaid
	s.Alerted = false
	s.UnpaidSince = now
	s.UpdatedAt = now
	if err := e.store.Save(ctx, s); err != nil {
		return fmt.Errorf("regress expired session for %s: %w", ev.SpotID, err)
	}

	metrics.SessionTransitions.WithLabelValues(string(s.Status)).Inc()
	logging.Ctx(ctx).Info().
		Str("session_id", s.ID).
		Str("spot_id", string(s.SpotID)).
		Msg("Paid time expired, session back to unpaid")
	e.publisher.PublishSessionUpdate(ctx, s.UpdateEvent(now))
	return nil
}
