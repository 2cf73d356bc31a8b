// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

// Package services adapts parkwatch components to suture.Service.
//
// Each adapter takes a small interface instead of the concrete type, so the
// package does not import the components it supervises and tests can use
// fakes:
//
//   - HTTPServerService: ListenAndServe / Shutdown
//   - LiveHubService: RunWithContext
//   - RouterService: Run / Close of the event router
//   - SweepService: a fixed-interval ticker around one Sweep call
package services
