// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/parkwatch/internal/models"
	"github.com/tomtom215/parkwatch/internal/store"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// ListSessions handles GET /api/v1/sessions?spot=&active=true&limit=.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := store.Filter{SpotID: models.SpotID(q.Get("spot"))}
	if f.SpotID != "" && !validSpotID(string(f.SpotID)) {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, "spot must be a valid spot id", nil)
		return
	}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeValidation, "active must be true or false", nil)
			return
		}
		f.ActiveOnly = active
	}
	limit, ok := parseLimit(q.Get("limit"))
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, "limit must be between 1 and 1000", nil)
		return
	}
	f.Limit = limit

	sessions, err := h.store.List(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Session store unavailable", err)
		return
	}
	if sessions == nil {
		sessions = []*models.ParkingSession{}
	}
	respondSuccess(w, http.StatusOK, sessions)
}

// GetSession handles GET /api/v1/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	h.respondSession(w, s, err)
}

// ActiveSession handles GET /api/v1/spots/{spotID}/session.
func (h *Handler) ActiveSession(w http.ResponseWriter, r *http.Request) {
	spot := chi.URLParam(r, "spotID")
	if !validSpotID(spot) {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, "spotID must be a valid spot id", nil)
		return
	}
	s, err := h.store.Active(r.Context(), models.SpotID(spot))
	h.respondSession(w, s, err)
}

func (h *Handler) respondSession(w http.ResponseWriter, s *models.ParkingSession, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Session not found", nil)
	case err != nil:
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Session store unavailable", err)
	default:
		respondSuccess(w, http.StatusOK, s)
	}
}

// SessionHistory handles GET /api/v1/sessions/{id}/history.
func (h *Handler) SessionHistory(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "History archive is disabled", nil)
		return
	}
	history, err := h.archive.SessionHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to read session history", err)
		return
	}
	if len(history) == 0 {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "No history for session", nil)
		return
	}
	respondSuccess(w, http.StatusOK, history)
}

// RecentAlerts handles GET /api/v1/alerts?spot=&limit=.
func (h *Handler) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "History archive is disabled", nil)
		return
	}
	spot := r.URL.Query().Get("spot")
	if spot != "" && !validSpotID(spot) {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, "spot must be a valid spot id", nil)
		return
	}
	limit, ok := parseLimit(r.URL.Query().Get("limit"))
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, "limit must be between 1 and 1000", nil)
		return
	}
	alerts, err := h.archive.RecentAlerts(r.Context(), models.SpotID(spot), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to read alerts", err)
		return
	}
	if alerts == nil {
		alerts = []models.AlertEvent{}
	}
	respondSuccess(w, http.StatusOK, alerts)
}

func parseLimit(raw string) (int, bool) {
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxListLimit {
		return 0, false
	}
	return n, true
}
