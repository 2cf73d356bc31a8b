// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

/*
Package eventprocessor moves parking events between the lifecycle engine and
the message transport.

# Transports

Two interchangeable transports implement watermill's message.Publisher and
message.Subscriber:

  - NATS JetStream via watermill-nats, optionally backed by an embedded
    nats-server. All parking topics live in one stream, created or updated
    at startup by StreamInitializer.
  - An in-process watermill gochannel for single-binary deployments and
    tests.

Every consumer subscribes under its own name. On JetStream each name gets
its own durable consumer, so the lifecycle controller, the archive and the
notifier each see every message on the topics they read.

# Inbound handling

Handlers decodes presence, payment and alert messages and passes them to
the lifecycle controller. The return value decides acknowledgement:

  - nil acks the message (processed, decode failure, orphan payment)
  - any other error nacks it and the transport redelivers later

Decode failures surface as *PermanentError and are logged and dropped.

# Router

Router wraps message.Router with panic recovery, optional throttling and
optional duplicate suppression by message UUID. It deliberately has no retry
or poison-queue middleware: redelivery is the transport's job.
*/
package eventprocessor
