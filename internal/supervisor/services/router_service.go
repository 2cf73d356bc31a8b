// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/thejerf/suture/v4"
)

// RouterRunner is satisfied by *eventprocessor.Router.
type RouterRunner interface {
	Run(ctx context.Context) error
	Close() error
}

// RouterService runs the watermill router that feeds the controller, the
// archive and the notification dispatcher.
//
// A watermill router cannot be started twice, so a router that stops on
// its own terminates the tree instead of being restarted. The process
// exits and the orchestrator restarts it with fresh subscriptions.
type RouterService struct {
	router RouterRunner
	name   string
}

// NewRouterService wraps router.
func NewRouterService(router RouterRunner) *RouterService {
	return &RouterService{router: router, name: "event-router"}
}

// Serve implements suture.Service.
func (s *RouterService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.router.Run(ctx) }()

	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			err = errors.New("router stopped")
		}
		return fmt.Errorf("event router: %v: %w", err, suture.ErrTerminateSupervisorTree)

	case <-ctx.Done():
		if err := s.router.Close(); err != nil {
			<-errCh
			return fmt.Errorf("event router close: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *RouterService) String() string {
	return s.name
}
