// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

/*
Package api exposes the HTTP surface of the engine.

The router is built on go-chi/chi/v5. Every response uses the
models.APIResponse envelope:

	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}
	{"status":"error","error":{"code":"NOT_FOUND","message":"..."},"metadata":{...}}

Routes:

	GET    /metrics                          Prometheus scrape endpoint
	GET    /api/v1/health                    store, transport, archive and hub status
	POST   /api/v1/payments                  payment gateway (optional bearer auth)
	POST   /api/v1/simulation/trigger        start a sensor simulation (?id=&time=)
	GET    /api/v1/simulation                running simulations
	DELETE /api/v1/simulation/{spotID}       cancel a simulation
	GET    /api/v1/sessions                  list sessions (?spot=&active=&limit=)
	GET    /api/v1/sessions/{id}             one session
	GET    /api/v1/sessions/{id}/history     archived update trail
	GET    /api/v1/spots/{spotID}/session    active session for a spot
	GET    /api/v1/alerts                    archived alerts (?spot=&limit=)
	GET    /api/v1/ws                        live dashboard over WebSocket
	GET    /api/v1/dashboard/stream          live dashboard over server-sent events

The payment gateway and the simulator do not touch the session store. They
publish events onto the inbound topics and the lifecycle controller picks
them up like any other producer's events.
*/
package api
