// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

/*
Package websocket pushes session updates and alerts to live dashboard
subscribers.

The Hub owns the set of registered subscribers. Two transports share it:
websocket clients (Client, backed by gorilla/websocket) and server-sent
event streams (StreamSSE). Both see the same envelope:

	{"type": "session_update" | "alert", "data": <event>}

Delivery is non-blocking. Each subscriber has a bounded buffer; a
subscriber whose buffer is full or whose connection failed is pruned from
the set without affecting the others or the outbound event stream.

The Hub runs under suture supervision through RunWithContext. On shutdown
every subscriber is closed and further registrations are rejected until
the Hub runs again.
*/
package websocket
