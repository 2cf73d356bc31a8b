// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

// Package testinfra starts real dependencies for integration tests.
//
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./...
//
// # NATS JetStream
//
// NewNATSContainer starts a JetStream-enabled NATS server in Docker:
//
//	func TestRoundTrip(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    nc, err := testinfra.NewNATSContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, nc)
//
//	    transport, err := eventprocessor.NewNATSTransport(ctx, nc.URL, &natsCfg, &topics, nil)
//	    // ...
//	}
//
// # Webhook receiver
//
// NewWebhookReceiver is an httptest server that records every request, for
// the alert webhook notifier.
package testinfra
