// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

// Package logging provides centralized zerolog-based logging for Parkwatch.
//
// A single global zerolog.Logger backs every package. Bridges expose it to
// libraries that expect other logger interfaces:
//
//   - NewSlogHandler / NewSlogLogger for log/slog consumers (sutureslog)
//   - NewWatermillLogger for the Watermill router and pub/sub
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("spot_id", spot).Msg("Session opened")
//	logging.Ctx(ctx).Warn().Msg("Orphan payment dropped")
//
// Always terminate log chains with .Msg() or .Send(); an unterminated
// chain is never emitted.
package logging
