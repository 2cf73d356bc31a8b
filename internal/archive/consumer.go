// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package archive

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/parkwatch/internal/config"
	"github.com/tomtom215/parkwatch/internal/eventprocessor"
	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/models"
)

// Consumer is the durable consumer name of the archive.
const Consumer = "archive"

// Register subscribes the archive to the session-update and alert topics.
func (a *Archive) Register(r *eventprocessor.Router, t *eventprocessor.Transport, topics *config.TopicsConfig) error {
	routes := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{"archive-session-updates", topics.SessionUpdates, a.HandleSessionUpdate},
		{"archive-alerts", topics.Alerts, a.HandleAlert},
	}
	for _, rt := range routes {
		sub, err := t.Subscriber(Consumer)
		if err != nil {
			return fmt.Errorf("subscriber for %s: %w", rt.name, err)
		}
		r.AddConsumerHandler(rt.name, rt.topic, sub, rt.handler)
	}
	return nil
}

// HandleSessionUpdate archives one session-update message. Write failures
// are returned so the message is redelivered.
func (a *Archive) HandleSessionUpdate(msg *message.Message) error {
	ev, err := eventprocessor.Decode[models.SessionUpdateEvent](msg.Payload)
	if err != nil {
		logging.Ctx(msg.Context()).Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Skipping undecodable session update")
		return nil
	}
	if _, err := a.AppendSessionUpdate(msg.Context(), msg.UUID, ev); err != nil {
		return err
	}
	return nil
}

// HandleAlert archives one alert message.
func (a *Archive) HandleAlert(msg *message.Message) error {
	ev, err := eventprocessor.Decode[models.AlertEvent](msg.Payload)
	if err != nil {
		logging.Ctx(msg.Context()).Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Skipping undecodable alert")
		return nil
	}
	if _, err := a.AppendAlert(msg.Context(), msg.UUID, ev); err != nil {
		return err
	}
	return nil
}
