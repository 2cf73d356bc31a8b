// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/parkwatch/internal/models"
)

// MemoryStore keeps sessions in process memory.
// Values are cloned on the way in and out.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ParkingSession
	active   map[models.SpotID]string
	closed   bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.ParkingSession),
		active:   make(map[models.SpotID]string),
	}
}

func (m *MemoryStore) Active(ctx context.Context, spot models.SpotID) (*models.ParkingSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	id, ok := m.active[spot]
	if !ok {
		return nil, ErrNotFound
	}
	return m.sessions[id].Clone(), nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.ParkingSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, s *models.ParkingSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return ErrInvalidSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if err := checkTransition(m.sessions[s.ID], s); err != nil {
		return err
	}
	if s.IsActive() {
		if id, ok := m.active[s.SpotID]; ok && id != s.ID {
			return fmt.Errorf("%w: spot %s held by %s", ErrActiveSessionExists, s.SpotID, id)
		}
		m.active[s.SpotID] = s.ID
	} else if m.active[s.SpotID] == s.ID {
		delete(m.active, s.SpotID)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f Filter) ([]*models.ParkingSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	var out []*models.ParkingSession
	if f.ActiveOnly {
		out = make([]*models.ParkingSession, 0, len(m.active))
		for _, id := range m.active {
			if s := m.sessions[id]; f.matches(s) {
				out = append(out, s.Clone())
			}
		}
	} else {
		out = make([]*models.ParkingSession, 0, len(m.sessions))
		for _, s := range m.sessions {
			if f.matches(s) {
				out = append(out, s.Clone())
			}
		}
	}
	return sortAndLimit(out, f.Limit), nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
