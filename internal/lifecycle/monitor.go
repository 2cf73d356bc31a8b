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

	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/metrics"
	"github.com/tomtom215/parkwatch/internal/models"
	"github.com/tomtom215/parkwatch/internal/store"
)

// Monitor raises overstay and expiry alerts.
//
// Rule 1: an ActiveUnpaid session unpaid for at least the grace period
// raises UnpaidOverstay. Rule 2: an ActivePaid session past PaidUntil
// raises PaidExpired. Both set Alerted, which only a resolving transition
// clears, so each condition alerts once per entry.
type Monitor struct {
	engine *Engine
}

// Name identifies the sweep in logs and metrics.
func (m *Monitor) Name() string { return "monitor" }

// Sweep evaluates every open session once. A failure on one session is
// logged and counted; the sweep moves on to the next.
func (m *Monitor) Sweep(ctx context.Context) (SweepResult, error) {
	e := m.engine
	started := time.Now()

	sessions, err := e.store.List(ctx, store.Filter{ActiveOnly: true})
	if err != nil {
		metrics.RecordSweep(m.Name(), time.Since(started), 1)
		return SweepResult{}, fmt.Errorf("list active sessions: %w", err)
	}

	res := SweepResult{Scanned: len(sessions)}
	byStatus := map[models.SessionStatus]int{}
	now := e.now()
	for _, snap := range sessions {
		byStatus[snap.Status]++
		if _, due := m.check(snap, now); !due {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		fired, err := m.evaluate(ctx, snap.SpotID, snap.ID)
		if err != nil {
			res.Failures++
			logging.Ctx(ctx).Error().Err(err).
				Str("session_id", snap.ID).
				Str("spot_id", string(snap.SpotID)).
				Msg("Monitor failed to evaluate session")
			continue
		}
		if fired {
			res.Changed++
		}
	}

	for _, st := range []models.SessionStatus{models.StatusActiveUnpaid, models.StatusActivePaid} {
		metrics.ActiveSessions.WithLabelValues(string(st)).Set(float64(byStatus[st]))
	}
	metrics.RecordSweep(m.Name(), time.Since(started), res.Failures)
	return res, ctx.Err()
}

// evaluate re-checks one session under its spot lock and raises its alert.
func (m *Monitor) evaluate(ctx context.Context, spot models.SpotID, id string) (bool, error) {
	e := m.engine
	s, unlock, err := e.lockedActive(ctx, spot)
	defer unlock()
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if s.ID != id {
		return false, nil
	}

	now := e.now()
	alert, due := m.check(s, now)
	if !due {
		return false, nil
	}

	s.Alerted = true
	s.UpdatedAt = now
	if err := e.store.Save(ctx, s); err != nil {
		return false, fmt.Errorf("mark session alerted: %w", err)
	}

	metrics.AlertsEmitted.WithLabelValues(string(alert.Kind)).Inc()
	logging.Ctx(ctx).Warn().
		Str("session_id", s.ID).
		Str("spot_id", string(s.SpotID)).
		Str("kind", string(alert.Kind)).
		Msg(alert.Message)
	e.publisher.PublishAlert(ctx, alert)
	return true, nil
}

// check applies both rules to s at now.
func (m *Monitor) check(s *models.ParkingSession, now time.Time) (models.AlertEvent, bool) {
	if s.Alerted || !s.IsActive() {
		return models.AlertEvent{}, false
	}
	grace := m.engine.settings.UnpaidGrace
	switch s.Status {
	case models.StatusActiveUnpaid:
		if now.Sub(unpaidAnchor(s)) >= grace {
			return models.NewUnpaidOverstayAlert(s.SpotID, grace, now), true
		}
	case models.StatusActivePaid:
		if s.PaidUntil != nil && now.After(*s.PaidUntil) {
			return models.NewPaidExpiredAlert(s.SpotID, *s.PaidUntil, now), true
		}
	}
	return models.AlertEvent{}, false
}

// unpaidAnchor is when the current unpaid period began.
func unpaidAnchor(s *models.ParkingSession) time.Time {
	if s.UnpaidSince.IsZero() {
		return s.StartTime
	}
	return s.UnpaidSince
}
