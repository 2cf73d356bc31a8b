// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package api

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// Health check values.
const (
	checkOK       = "ok"
	checkDisabled = "disabled"
	checkStopped  = "stopped"
)

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status            string            `json:"status"`
	UptimeSeconds     float64           `json:"uptime_seconds"`
	Checks            map[string]string `json:"checks"`
	LiveSubscribers   int               `json:"live_subscribers"`
	ActiveSimulations int               `json:"active_simulations"`
}

// Health handles GET /api/v1/health. It answers 503 when the store, the
// transport, the embedded broker or archive (if enabled) or the live hub is down.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{
		"store":     probe(ctx, h.store),
		"transport": probe(ctx, h.transport),
		"broker":    probe(ctx, h.broker),
		"archive":   checkDisabled,
		"live_hub":  checkOK,
	}
	if h.archive != nil {
		checks["archive"] = probe(ctx, h.archive)
	}
	if !h.hub.Running() {
		checks["live_hub"] = checkStopped
	}

	status := HealthStatus{
		Status:          "healthy",
		UptimeSeconds:   time.Since(h.startTime).Seconds(),
		Checks:          checks,
		LiveSubscribers: h.hub.SubscriberCount(),
	}
	if h.sim != nil {
		status.ActiveSimulations = len(h.sim.Active())
	}

	code := http.StatusOK
	for _, v := range checks {
		if v != checkOK && v != checkDisabled {
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}
	respondSuccess(w, code, status)
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return checkDisabled
	}
	if err := p.Ping(ctx); err != nil {
		return err.Error()
	}
	return checkOK
}
