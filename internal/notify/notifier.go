// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

// Package notify dispatches alert notifications to enforcement staff.
//
// The Dispatcher consumes the alert topic on its own consumer and hands
// every alert to each configured Notifier. Delivery is best effort: a
// failing channel is logged and counted, and the message is still acked.
package notify

import (
	"context"

	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/models"
)

// Notifier delivers one alert over one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert models.AlertEvent) error
}

// LogNotifier records a push notification in the service log.
type LogNotifier struct{}

// Name returns the channel name.
func (LogNotifier) Name() string { return "push" }

// Notify logs the alert.
func (LogNotifier) Notify(ctx context.Context, alert models.AlertEvent) error {
	logging.Ctx(ctx).Info().
		Str("channel", "push").
		Str("kind", string(alert.Kind)).
		Str("spot_id", string(alert.SpotID)).
		Time("alerted_at", alert.Timestamp).
		Msg("[PUSH NOTIFICATION] " + alert.Message)
	return nil
}
