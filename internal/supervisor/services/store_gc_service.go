// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package services

import (
	"context"
	"time"

	"github.com/tomtom215/parkwatch/internal/logging"
)

// GarbageCollector is satisfied by *store.BadgerStore.
type GarbageCollector interface {
	RunGC() error
}

// StoreGCService reclaims session store disk space periodically.
type StoreGCService struct {
	gc       GarbageCollector
	interval time.Duration
}

// NewStoreGCService wraps gc. A non-positive interval means 5m.
func NewStoreGCService(gc GarbageCollector, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &StoreGCService{gc: gc, interval: interval}
}

// Serve implements suture.Service. GC errors are logged, not returned.
func (s *StoreGCService) Serve(ctx context.Context) error {
	log := logging.WithComponent("store-gc")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.gc.RunGC(); err != nil {
				log.Warn().Err(err).Msg("Value log GC failed")
			}
		}
	}
}

// String implements fmt.Stringer for suture logs.
func (s *StoreGCService) String() string {
	return "store-gc"
}
