// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/parkwatch/internal/models"
	"github.com/tomtom215/parkwatch/internal/store"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu      sync.Mutex
	updates []models.SessionUpdateEvent
	alerts  []models.AlertEvent
}

func (p *recordingPublisher) PublishSessionUpdate(_ context.Context, ev models.SessionUpdateEvent) {
	p.mu.Lock()
	p.updates = append(p.updates, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) PublishAlert(_ context.Context, ev models.AlertEvent) {
	p.mu.Lock()
	p.alerts = append(p.alerts, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) Updates() []models.SessionUpdateEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.SessionUpdateEvent(nil), p.updates...)
}

func (p *recordingPublisher) Alerts() []models.AlertEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.AlertEvent(nil), p.alerts...)
}

var errStoreDown = errors.New("store unavailable")

// flakyStore fails writes for spots in failSaves and all calls when down is set.
type flakyStore struct {
	store.Store
	down      atomic.Bool
	mu        sync.Mutex
	failSaves map[models.SpotID]bool
}

func (f *flakyStore) failSavesFor(spot models.SpotID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaves == nil {
		f.failSaves = map[models.SpotID]bool{}
	}
	f.failSaves[spot] = true
}

func (f *flakyStore) Active(ctx context.Context, spot models.SpotID) (*models.ParkingSession, error) {
	if f.down.Load() {
		return nil, errStoreDown
	}
	return f.Store.Active(ctx, spot)
}

func (f *flakyStore) Save(ctx context.Context, s *models.ParkingSession) error {
	f.mu.Lock()
	fail := f.failSaves[s.SpotID]
	f.mu.Unlock()
	if fail || f.down.Load() {
		return errStoreDown
	}
	return f.Store.Save(ctx, s)
}

type harness struct {
	engine *Engine
	store  *flakyStore
	pub    *recordingPublisher
	clock  *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: &flakyStore{Store: store.NewMemoryStore()},
		pub:   &recordingPublisher{},
		clock: &fakeClock{now: t0},
	}
	var seq atomic.Int64
	h.engine = New(DefaultSettings(), h.store, h.pub,
		WithClock(h.clock.Now),
		WithIDGenerator(func() string { return fmt.Sprintf("s-%d", seq.Add(1)) }),
	)
	t.Cleanup(func() { _ = h.store.Close() })
	return h
}

// presence sends a detection stamped with the current fake time.
func (h *harness) presence(t *testing.T, spot models.SpotID) {
	t.Helper()
	if err := h.engine.Controller().HandlePresence(context.Background(), models.PresenceEvent{SpotID: spot, ObservedAt: h.clock.Now()}); err != nil {
		t.Fatalf("HandlePresence(%s): %v", spot, err)
	}
}

// open confirms a session for spot, starting at the current fake time.
func (h *harness) open(t *testing.T, spot models.SpotID) *models.ParkingSession {
	t.Helper()
	h.presence(t, spot)
	for i := 0; i < 30; i++ {
		h.clock.Advance(time.Second)
		h.presence(t, spot)
	}
	return h.active(t, spot)
}

func (h *harness) active(t *testing.T, spot models.SpotID) *models.ParkingSession {
	t.Helper()
	s, err := h.store.Store.Active(context.Background(), spot)
	if err != nil {
		t.Fatalf("Active(%s): %v", spot, err)
	}
	return s
}

func (h *harness) countSessions(t *testing.T, spot models.SpotID) (total, open int) {
	t.Helper()
	all, err := h.store.Store.List(context.Background(), store.Filter{SpotID: spot})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, s := range all {
		if s.IsActive() {
			open++
		}
	}
	return len(all), open
}
