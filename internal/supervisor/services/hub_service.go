// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package services

import "context"

// ContextHub is satisfied by *websocket.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// LiveHubService runs the dashboard hub. The hub closes every live
// subscriber when ctx ends.
type LiveHubService struct {
	hub  ContextHub
	name string
}

// NewLiveHubService wraps hub.
func NewLiveHubService(hub ContextHub) *LiveHubService {
	return &LiveHubService{hub: hub, name: "live-hub"}
}

// Serve implements suture.Service.
func (s *LiveHubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

func (s *LiveHubService) String() string {
	return s.name
}
