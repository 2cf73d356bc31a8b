// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package eventprocessor

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
	natsgo "github.com/nats-io/nats.go"
)

// connOptions are the NATS connection options shared by publishers and
// subscribers. The connection retries forever when maxReconnects is -1 and
// logs every disconnect and reconnect under name.
func connOptions(name string, maxReconnects int, wait time.Duration, logger watermill.LoggerAdapter) []natsgo.Option {
	fields := watermill.LogFields{"connection": name}
	return []natsgo.Option{
		natsgo.Name(name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(maxReconnects),
		natsgo.ReconnectWait(wait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS connection lost", err, fields)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS connection restored", fields.Add(watermill.LogFields{"url": nc.ConnectedUrl()}))
		}),
	}
}
