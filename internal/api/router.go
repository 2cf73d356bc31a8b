// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the chi router.
//
// Global middleware runs in this order: request id and logging context,
// RealIP, Recoverer, CORS, metrics. Rate limiting applies to the request
// routes, not to health, metrics or the live streams.
func NewRouter(h *Handler, mw MiddlewareConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())
	r.Use(PrometheusMetrics)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Get("/ws", h.WebSocket)
		r.Get("/dashboard/stream", h.DashboardStream)

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit())

			r.With(h.paymentAuth).Post("/payments", h.SubmitPayment)

			r.Route("/simulation", func(r chi.Router) {
				r.Get("/", h.ListSimulations)
				r.Post("/trigger", h.TriggerSimulation)
				r.Delete("/{spotID}", h.CancelSimulation)
			})

			r.Get("/sessions", h.ListSessions)
			r.Get("/sessions/{id}", h.GetSession)
			r.Get("/sessions/{id}/history", h.SessionHistory)
			r.Get("/spots/{spotID}/session", h.ActiveSession)
			r.Get("/alerts", h.RecentAlerts)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}

// paymentAuth applies bearer auth when a JWT manager is configured.
func (h *Handler) paymentAuth(next http.Handler) http.Handler {
	if h.jwt == nil {
		return next
	}
	return h.jwt.RequireBearer(next)
}
