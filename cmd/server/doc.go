// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

/*
Package main is the entry point for the Parkwatch server.

Parkwatch turns raw parking-sensor presence events and driver payments into
parking sessions, raises overstay alerts and closes sessions whose sensor has
gone quiet.

# Application Architecture

The server runs every long-lived component under a Suture v4 tree:

	RootSupervisor ("parkwatch")
	├── EngineSupervisor ("engine-layer")
	│   ├── monitor-sweep (overstay alerts)
	│   ├── watchdog-sweep (silence termination)
	│   └── store-gc (badger backend only)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── live-hub (WebSocket and SSE fan-out)
	│   ├── event-router (presence, payment and alert consumers)
	│   ├── event-publisher (ordered outbound queue)
	│   └── sensor-simulator
	└── APISupervisor ("api-layer")
	    └── http-server

Component initialization order:

 1. Configuration: Koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog with JSON or console output
 3. Transport: in-process gochannel, or NATS JetStream (optionally embedded)
 4. Session store: memory or BadgerDB
 5. Lifecycle engine: controller, monitor and watchdog
 6. Event router: controller, archive and notification consumers
 7. HTTP API: Chi router, WebSocket and SSE streams

# Configuration

Environment variables override the config file:

	CONFIRMATION_WINDOW=30s
	SILENCE_TIMEOUT=30s
	UNPAID_GRACE=5m
	PAYMENT_RATE=0.10
	NATS_ENABLED=true
	NATS_EMBEDDED=true
	STORE_BACKEND=badger
	ARCHIVE_ENABLED=true
	REQUIRE_PAYMENT_AUTH=true
	JWT_SECRET=<32+ chars>

# Signal Handling

SIGINT and SIGTERM cancel the root context. The tree stops the HTTP server,
drains the event router and stops the sweeps, then the transport, archive,
store and embedded NATS server are closed in that order.
*/
package main
