// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tomtom215/parkwatch/internal/config"
	"github.com/tomtom215/parkwatch/internal/debounce"
	"github.com/tomtom215/parkwatch/internal/models"
	"github.com/tomtom215/parkwatch/internal/spotlock"
	"github.com/tomtom215/parkwatch/internal/store"
)

// ErrOrphanPayment is returned when a payment names a spot without an
// active session. The payment is dropped.
var ErrOrphanPayment = errors.New("no active session for payment")

// Publisher receives every outbound event, called under the spot lock.
// Implementations keep call order and never block on delivery. They must
// not call back into the Controller.
type Publisher interface {
	PublishSessionUpdate(ctx context.Context, ev models.SessionUpdateEvent)
	PublishAlert(ctx context.Context, ev models.AlertEvent)
}

// Settings holds the engine thresholds.
type Settings struct {
	ConfirmationWindow time.Duration
	SilenceTimeout     time.Duration
	UnpaidGrace        time.Duration
	DebounceResetGap   time.Duration

	// PaymentRate is the amount that buys one minute.
	PaymentRate decimal.Decimal
}

// DefaultSettings returns the stock thresholds.
func DefaultSettings() Settings {
	return Settings{
		ConfirmationWindow: 30 * time.Second,
		SilenceTimeout:     30 * time.Second,
		UnpaidGrace:        5 * time.Minute,
		DebounceResetGap:   10 * time.Second,
		PaymentRate:        decimal.RequireFromString("0.10"),
	}
}

// SettingsFromConfig converts the engine section of the service config.
func SettingsFromConfig(cfg *config.EngineConfig) Settings {
	return Settings{
		ConfirmationWindow: cfg.ConfirmationWindow,
		SilenceTimeout:     cfg.SilenceTimeout,
		UnpaidGrace:        cfg.UnpaidGrace,
		DebounceResetGap:   cfg.DebounceResetGap,
		PaymentRate:        cfg.Rate(),
	}
}

// Engine bundles the shared state of the three session writers.
type Engine struct {
	settings  Settings
	store     store.Store
	gate      *debounce.Gate
	locks     *spotlock.Locker
	publisher Publisher
	now       func() time.Time
	newID     func() string

	controller *Controller
	monitor    *Monitor
	watchdog   *Watchdog
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock. Used by tests and the simulator.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// New wires an Engine over st, emitting through pub.
func New(settings Settings, st store.Store, pub Publisher, opts ...Option) *Engine {
	e := &Engine{
		settings:  settings,
		store:     st,
		publisher: pub,
		locks:     spotlock.New(),
		gate: debounce.NewGate(debounce.Config{
			ConfirmationWindow: settings.ConfirmationWindow,
			ResetGap:           settings.DebounceResetGap,
		}),
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.controller = &Controller{engine: e}
	e.monitor = &Monitor{engine: e}
	e.watchdog = &Watchdog{engine: e}
	return e
}

// Controller returns the inbound event handler.
func (e *Engine) Controller() *Controller { return e.controller }

// Monitor returns the overstay/expiry sweep.
func (e *Engine) Monitor() *Monitor { return e.monitor }

// Watchdog returns the termination sweep.
func (e *Engine) Watchdog() *Watchdog { return e.watchdog }

// Gate exposes the debounce gate for eviction and inspection.
func (e *Engine) Gate() *debounce.Gate { return e.gate }

// Settings returns the thresholds the engine runs with.
func (e *Engine) Settings() Settings { return e.settings }

// SweepResult summarizes one sweep.
type SweepResult struct {
	Scanned  int
	Changed  int
	Failures int
}

// lockedActive takes the spot lock and loads the spot's active session.
// The returned unlock must be called even when err != nil.
func (e *Engine) lockedActive(ctx context.Context, spot models.SpotID) (*models.ParkingSession, func(), error) {
	unlock := e.locks.Lock(spot)
	s, err := e.store.Active(ctx, spot)
	return s, unlock, err
}
