// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package notify

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/parkwatch/internal/config"
	"github.com/tomtom215/parkwatch/internal/eventprocessor"
	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/metrics"
	"github.com/tomtom215/parkwatch/internal/models"
)

// Consumer is the durable consumer name of the dispatcher.
const Consumer = "notify"

// Dispatcher fans each alert out to its notifiers.
type Dispatcher struct {
	notifiers []Notifier
}

// NewDispatcher creates a Dispatcher over notifiers.
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers}
}

// NewDispatcherFromConfig always logs and adds a webhook when a URL is set.
func NewDispatcherFromConfig(cfg *config.NotifyConfig) *Dispatcher {
	notifiers := []Notifier{LogNotifier{}}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, NewWebhookNotifier(WebhookConfig{
			URL:           cfg.WebhookURL,
			RatePerMinute: cfg.RatePerMinute,
			Timeout:       cfg.Timeout,
		}))
	}
	return NewDispatcher(notifiers...)
}

// Channels returns the names of the configured notifiers.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.notifiers))
	for i, n := range d.notifiers {
		names[i] = n.Name()
	}
	return names
}

// Register subscribes the dispatcher to the alert topic.
func (d *Dispatcher) Register(r *eventprocessor.Router, t *eventprocessor.Transport, topic string) error {
	sub, err := t.Subscriber(Consumer)
	if err != nil {
		return fmt.Errorf("notify subscriber: %w", err)
	}
	r.AddConsumerHandler("notify-alert", topic, sub, d.Handle)
	return nil
}

// Handle delivers one alert message. It never asks for redelivery.
func (d *Dispatcher) Handle(msg *message.Message) error {
	ctx := msg.Context()
	if cid := msg.Metadata.Get(eventprocessor.MetadataCorrelationID); cid != "" {
		ctx = logging.ContextWithCorrelationID(ctx, cid)
	}

	alert, err := eventprocessor.Decode[models.AlertEvent](msg.Payload)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable alert")
		return nil
	}

	for _, n := range d.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			metrics.NotificationsSent.WithLabelValues(n.Name(), "failure").Inc()
			logging.Ctx(ctx).Error().Err(err).
				Str("channel", n.Name()).
				Str("spot_id", string(alert.SpotID)).
				Msg("Alert notification failed")
			continue
		}
		metrics.NotificationsSent.WithLabelValues(n.Name(), "success").Inc()
	}
	return nil
}
