// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

// Package simulation drives fake occupancy sensors for demos and tests.
//
// A run publishes one Presence event per interval for a spot onto the
// presence topic, exactly like a real sensor that sees a parked car. Runs
// are independent goroutines; the Simulator cancels them on request or on
// shutdown.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/parkwatch/internal/eventprocessor"
	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/models"
)

// Duration bounds for a single run.
const (
	MinDuration = time.Second
	MaxDuration = time.Hour
)

var (
	// ErrInvalidDuration is returned for durations outside [MinDuration, MaxDuration].
	ErrInvalidDuration = errors.New("simulation: duration out of range")
	// ErrAlreadyRunning is returned when the spot already has a run.
	ErrAlreadyRunning = errors.New("simulation: spot already simulated")
	// ErrStopped is returned after the simulator has shut down.
	ErrStopped = errors.New("simulation: simulator stopped")
)

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Simulator manages sensor runs.
type Simulator struct {
	out      message.Publisher
	topic    string
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	runs    map[models.SpotID]*run
	stopped bool
	wg      sync.WaitGroup
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithInterval sets the time between events. Defaults to one second.
func WithInterval(d time.Duration) Option {
	return func(s *Simulator) { s.interval = d }
}

// WithClock sets the source of ObservedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// New creates a Simulator publishing to topic.
func New(out message.Publisher, topic string, opts ...Option) *Simulator {
	s := &Simulator{
		out:      out,
		topic:    topic,
		interval: time.Second,
		now:      time.Now,
		runs:     make(map[models.SpotID]*run),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a run of d for spot. The run emits ceil(d / interval) events.
func (s *Simulator) Start(spot models.SpotID, d time.Duration) error {
	if d < MinDuration || d > MaxDuration {
		return fmt.Errorf("%w: %s", ErrInvalidDuration, d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if _, ok := s.runs[spot]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, spot)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{cancel: cancel, done: make(chan struct{})}
	s.runs[spot] = r
	s.wg.Add(1)
	go s.loop(ctx, spot, d, r)

	logging.Info().Str("spot_id", string(spot)).Dur("duration", d).Msg("Simulation started")
	return nil
}

func (s *Simulator) loop(ctx context.Context, spot models.SpotID, d time.Duration, r *run) {
	defer func() {
		s.mu.Lock()
		if s.runs[spot] == r {
			delete(s.runs, spot)
		}
		s.mu.Unlock()
		close(r.done)
		s.wg.Done()
	}()

	ticks := int((d + s.interval - 1) / s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	sent := 0
	for {
		s.emit(ctx, spot)
		sent++
		if sent >= ticks {
			logging.Info().Str("spot_id", string(spot)).Int("events", sent).Msg("Simulation finished")
			return
		}
		select {
		case <-ctx.Done():
			logging.Info().Str("spot_id", string(spot)).Int("events", sent).Msg("Simulation canceled")
			return
		case <-ticker.C:
		}
	}
}

func (s *Simulator) emit(ctx context.Context, spot models.SpotID) {
	ev := models.PresenceEvent{SpotID: spot, ObservedAt: s.now().UTC()}
	msg, err := eventprocessor.NewMessageWithContext(ctx, eventprocessor.EventTypePresence, string(spot), ev)
	if err == nil {
		err = s.out.Publish(s.topic, msg)
	}
	if err != nil {
		logging.Warn().Err(err).Str("spot_id", string(spot)).Msg("Simulated presence event not published")
	}
}

// Cancel stops the run for spot and waits for it to exit. Returns false
// when the spot has no run.
func (s *Simulator) Cancel(spot models.SpotID) bool {
	s.mu.Lock()
	r, ok := s.runs[spot]
	s.mu.Unlock()
	if !ok {
		return false
	}
	r.cancel()
	<-r.done
	return true
}

// Active returns the spots with a running simulation, sorted.
func (s *Simulator) Active() []models.SpotID {
	s.mu.Lock()
	defer s.mu.Unlock()
	spots := make([]models.SpotID, 0, len(s.runs))
	for spot := range s.runs {
		spots = append(spots, spot)
	}
	sort.Slice(spots, func(i, j int) bool { return spots[i] < spots[j] })
	return spots
}

// Stop cancels every run, waits for them, and rejects new ones.
func (s *Simulator) Stop() {
	s.mu.Lock()
	s.stopped = true
	for _, r := range s.runs {
		r.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Serve implements suture.Service. It blocks until ctx ends, then stops
// all runs.
func (s *Simulator) Serve(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = false
	s.mu.Unlock()

	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture logs.
func (s *Simulator) String() string { return "sensor-simulator" }
