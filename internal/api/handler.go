// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package api

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/parkwatch/internal/archive"
	"github.com/tomtom215/parkwatch/internal/auth"
	"github.com/tomtom215/parkwatch/internal/config"
	"github.com/tomtom215/parkwatch/internal/models"
	"github.com/tomtom215/parkwatch/internal/store"
	"github.com/tomtom215/parkwatch/internal/websocket"
)

// Pinger is a dependency with a health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Simulator starts and cancels fake sensor runs.
type Simulator interface {
	Start(spot models.SpotID, d time.Duration) error
	Cancel(spot models.SpotID) bool
	Active() []models.SpotID
}

// Dependencies wires the handler. Broker, Archive, JWT and Simulator may be nil.
type Dependencies struct {
	Store     store.Store
	Publisher message.Publisher
	Transport Pinger
	Broker    Pinger
	Hub       *websocket.Hub
	Simulator Simulator
	Archive   *archive.Archive
	JWT       *auth.JWTManager
	Topics    config.TopicsConfig

	// AllowedOrigins restricts WebSocket upgrades. Empty allows any origin.
	AllowedOrigins []string
}

// Handler holds the HTTP handlers.
type Handler struct {
	store     store.Store
	publisher message.Publisher
	transport Pinger
	broker    Pinger
	hub       *websocket.Hub
	sim       Simulator
	archive   *archive.Archive
	jwt       *auth.JWTManager
	topics    config.TopicsConfig
	upgrader  *gorillaws.Upgrader

	startTime time.Time
	now       func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		store:     deps.Store,
		publisher: deps.Publisher,
		transport: deps.Transport,
		broker:    deps.Broker,
		hub:       deps.Hub,
		sim:       deps.Simulator,
		archive:   deps.Archive,
		jwt:       deps.JWT,
		topics:    deps.Topics,
		upgrader:  NewUpgrader(deps.AllowedOrigins),
		startTime: time.Now(),
		now:       time.Now,
	}
}
