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

// Watchdog closes sessions whose spot has gone silent. It is the only
// writer of EndTime.
type Watchdog struct {
	engine *Engine
}

// Name identifies the sweep in logs and metrics.
func (w *Watchdog) Name() string { return "watchdog" }

// Sweep terminates every open session without a heartbeat for the silence
// timeout and evicts debounce runs that went quiet for as long.
func (w *Watchdog) Sweep(ctx context.Context) (SweepResult, error) {
	e := w.engine
	started := time.Now()
	silence := e.settings.SilenceTimeout

	if n := e.gate.EvictStale(e.now().Add(-silence)); n > 0 {
		logging.Ctx(ctx).Debug().Int("evicted", n).Msg("Evicted stale debounce runs")
	}
	metrics.DebouncePending.Set(float64(e.gate.Len()))

	sessions, err := e.store.List(ctx, store.Filter{ActiveOnly: true})
	if err != nil {
		metrics.RecordSweep(w.Name(), time.Since(started), 1)
		return SweepResult{}, fmt.Errorf("list active sessions: %w", err)
	}

	res := SweepResult{Scanned: len(sessions)}
	now := e.now()
	for _, snap := range sessions {
		if now.Sub(snap.LastActivity) < silence {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		closed, err := w.terminate(ctx, snap.SpotID, snap.ID)
		if err != nil {
			res.Failures++
			logging.Ctx(ctx).Error().Err(err).
				Str("session_id", snap.ID).
				Str("spot_id", string(snap.SpotID)).
				Msg("Watchdog failed to terminate session")
			continue
		}
		if closed {
			res.Changed++
		}
	}

	metrics.RecordSweep(w.Name(), time.Since(started), res.Failures)
	return res, ctx.Err()
}

// terminate re-checks silence under the spot lock and closes the session.
func (w *Watchdog) terminate(ctx context.Context, spot models.SpotID, id string) (bool, error) {
	e := w.engine
	s, unlock, err := e.lockedActive(ctx, spot)
	defer unlock()
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := e.now()
	// A heartbeat may have landed since the snapshot.
	if s.ID != id || now.Sub(s.LastActivity) < e.settings.SilenceTimeout {
		return false, nil
	}

	s.EndTime = &now
	s.Status = models.StatusTerminated
	s.UpdatedAt = now
	if err := e.store.Save(ctx, s); err != nil {
		return false, fmt.Errorf("terminate session: %w", err)
	}

	metrics.SessionTransitions.WithLabelValues(string(s.Status)).Inc()
	logging.Ctx(ctx).Info().
		Str("session_id", s.ID).
		Str("spot_id", string(s.SpotID)).
		Dur("duration", now.Sub(s.StartTime)).
		Msg("Session terminated")
	e.publisher.PublishSessionUpdate(ctx, s.UpdateEvent(now))
	return true, nil
}
