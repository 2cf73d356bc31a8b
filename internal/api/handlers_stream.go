// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package api

import (
	"errors"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/websocket"
)

// NewUpgrader returns the WebSocket upgrader. An empty origin list or "*"
// accepts every origin; otherwise the Origin header must match exactly.
func NewUpgrader(allowedOrigins []string) *gorillaws.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return &gorillaws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// WebSocket handles GET /api/v1/ws.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.hub.Running() {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Live updates not available", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn)
	if err := client.Start(); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket client rejected")
		return
	}
	logging.Ctx(r.Context()).Debug().Uint64("subscriber_id", client.Subscriber().ID()).Msg("WebSocket client connected")
}

// DashboardStream handles GET /api/v1/dashboard/stream with server-sent
// events. It blocks until the client disconnects.
func (h *Handler) DashboardStream(w http.ResponseWriter, r *http.Request) {
	if !h.hub.Running() {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Live updates not available", nil)
		return
	}

	err := websocket.StreamSSE(r.Context(), w, h.hub)
	switch {
	case errors.Is(err, websocket.ErrStreamingUnsupported):
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Streaming not supported", err)
	case errors.Is(err, websocket.ErrHubStopped):
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Live updates not available", nil)
	case err != nil:
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Dashboard stream closed")
	}
}
