// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/models"
	"github.com/tomtom215/parkwatch/internal/simulation"
	"github.com/tomtom215/parkwatch/internal/validation"
)

// SimulationStatus describes one simulation run.
type SimulationStatus struct {
	SpotID          models.SpotID `json:"spot_id"`
	DurationSeconds int           `json:"duration_seconds,omitempty"`
	State           string        `json:"state"`
}

// TriggerSimulation handles POST /api/v1/simulation/trigger?id=<spot>&time=<seconds>.
func (h *Handler) TriggerSimulation(w http.ResponseWriter, r *http.Request) {
	if h.sim == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Simulator not available", nil)
		return
	}

	spot := r.URL.Query().Get("id")
	if !validSpotID(spot) {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, "id must be a valid spot id", nil)
		return
	}
	seconds, err := strconv.Atoi(r.URL.Query().Get("time"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, "time must be a whole number of seconds", nil)
		return
	}

	err = h.sim.Start(models.SpotID(spot), time.Duration(seconds)*time.Second)
	switch {
	case errors.Is(err, simulation.ErrInvalidDuration):
		respondError(w, http.StatusBadRequest, ErrCodeValidation, "time must be between 1 and 3600 seconds", nil)
		return
	case errors.Is(err, simulation.ErrAlreadyRunning):
		respondError(w, http.StatusConflict, ErrCodeConflict, "Simulation already running for spot", nil)
		return
	case err != nil:
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Simulation could not start", err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("spot_id", spot).Int("seconds", seconds).Msg("Simulation triggered")
	respondSuccess(w, http.StatusAccepted, SimulationStatus{
		SpotID:          models.SpotID(spot),
		DurationSeconds: seconds,
		State:           "running",
	})
}

// CancelSimulation handles DELETE /api/v1/simulation/{spotID}.
func (h *Handler) CancelSimulation(w http.ResponseWriter, r *http.Request) {
	if h.sim == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Simulator not available", nil)
		return
	}
	spot := models.SpotID(chi.URLParam(r, "spotID"))
	if !h.sim.Cancel(spot) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "No simulation running for spot", nil)
		return
	}
	respondSuccess(w, http.StatusOK, SimulationStatus{SpotID: spot, State: "canceled"})
}

// ListSimulations handles GET /api/v1/simulation.
func (h *Handler) ListSimulations(w http.ResponseWriter, r *http.Request) {
	if h.sim == nil {
		respondSuccess(w, http.StatusOK, []SimulationStatus{})
		return
	}
	active := h.sim.Active()
	out := make([]SimulationStatus, 0, len(active))
	for _, spot := range active {
		out = append(out, SimulationStatus{SpotID: spot, State: "running"})
	}
	respondSuccess(w, http.StatusOK, out)
}

func validSpotID(s string) bool {
	return validation.GetValidator().Var(s, "required,spotid") == nil
}
