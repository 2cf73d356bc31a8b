// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package services

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/parkwatch/internal/lifecycle"
	"github.com/tomtom215/parkwatch/internal/logging"
)

// Sweeper is satisfied by *lifecycle.Monitor and *lifecycle.Watchdog.
type Sweeper interface {
	Name() string
	Sweep(ctx context.Context) (lifecycle.SweepResult, error)
}

// SweepService calls Sweep once per interval. Ticks never overlap: a sweep
// that runs longer than the interval delays the next one.
//
// A failed sweep is logged and the loop continues; the next tick retries.
type SweepService struct {
	sweeper  Sweeper
	interval time.Duration
}

// NewSweepService wraps sweeper. A non-positive interval means 10s.
func NewSweepService(sweeper Sweeper, interval time.Duration) *SweepService {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &SweepService{sweeper: sweeper, interval: interval}
}

// Serve implements suture.Service.
func (s *SweepService) Serve(ctx context.Context) error {
	log := logging.WithComponent(s.sweeper.Name())
	log.Info().Dur("interval", s.interval).Msg("Sweep loop started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sweep loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}

		sweepCtx := logging.ContextWithNewCorrelationID(ctx)
		res, err := s.sweeper.Sweep(sweepCtx)
		switch {
		case errors.Is(err, context.Canceled):
		case err != nil:
			log.Error().Err(err).Msg("Sweep failed")
		case res.Changed > 0 || res.Failures > 0:
			log.Info().
				Int("scanned", res.Scanned).
				Int("changed", res.Changed).
				Int("failures", res.Failures).
				Msg("Sweep completed")
		default:
			log.Debug().Int("scanned", res.Scanned).Msg("Sweep completed")
		}
	}
}

// String implements fmt.Stringer for suture logs.
func (s *SweepService) String() string {
	return s.sweeper.Name() + "-sweep"
}
