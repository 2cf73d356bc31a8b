// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/parkwatch/internal/config"
	"github.com/tomtom215/parkwatch/internal/lifecycle"
	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/metrics"
	"github.com/tomtom215/parkwatch/internal/models"
)

// Stream labels used in logs and metrics.
const (
	StreamPresence = "presence"
	StreamPayment  = "payment"
	StreamAlert    = "alert"
)

// Event outcomes recorded per inbound message.
const (
	OutcomeProcessed    = "processed"
	OutcomeDecodeFailed = "decode_failed"
	OutcomeOrphan       = "orphan"
	OutcomeFailed       = "store_failed"
)

// ControllerConsumer is the consumer name of the lifecycle controller.
const ControllerConsumer = "controller"

// Controller is the lifecycle entry point the handlers feed.
type Controller interface {
	HandlePresence(ctx context.Context, ev models.PresenceEvent) error
	HandlePayment(ctx context.Context, ev models.PaymentEvent) error
	HandleAlert(ctx context.Context, ev models.AlertEvent) error
}

// Handlers adapts transport messages to Controller calls.
type Handlers struct {
	controller Controller
}

// NewHandlers creates Handlers for controller.
func NewHandlers(controller Controller) *Handlers {
	return &Handlers{controller: controller}
}

// Register subscribes the three controller handlers on r, all under the
// controller consumer name.
func (h *Handlers) Register(r *Router, t *Transport, topics *config.TopicsConfig) error {
	routes := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{"controller-presence", topics.Presence, h.Presence},
		{"controller-payment", topics.Payment, h.Payment},
		{"controller-alert", topics.Alerts, h.Alert},
	}
	for _, rt := range routes {
		sub, err := t.Subscriber(ControllerConsumer)
		if err != nil {
			return fmt.Errorf("subscriber for %s: %w", rt.name, err)
		}
		r.AddConsumerHandler(rt.name, rt.topic, sub, rt.handler)
	}
	return nil
}

// Presence handles one presence message.
func (h *Handlers) Presence(msg *message.Message) error {
	return h.handle(StreamPresence, msg, func(ctx context.Context) error {
		ev, err := Decode[models.PresenceEvent](msg.Payload)
		if err != nil {
			return err
		}
		return h.controller.HandlePresence(ctx, ev)
	})
}

// Payment handles one payment message.
func (h *Handlers) Payment(msg *message.Message) error {
	return h.handle(StreamPayment, msg, func(ctx context.Context) error {
		ev, err := Decode[models.PaymentEvent](msg.Payload)
		if err != nil {
			return err
		}
		return h.controller.HandlePayment(ctx, ev)
	})
}

// Alert handles one message from the alert stream.
func (h *Handlers) Alert(msg *message.Message) error {
	return h.handle(StreamAlert, msg, func(ctx context.Context) error {
		ev, err := Decode[models.AlertEvent](msg.Payload)
		if err != nil {
			return err
		}
		return h.controller.HandleAlert(ctx, ev)
	})
}

// handle runs fn and maps its error onto ack or nack. Only errors that a
// redelivery could fix are returned.
func (h *Handlers) handle(stream string, msg *message.Message, fn func(context.Context) error) error {
	start := time.Now()
	ctx := msg.Context()
	if cid := msg.Metadata.Get(MetadataCorrelationID); cid != "" {
		ctx = logging.ContextWithCorrelationID(ctx, cid)
	}

	err := fn(ctx)

	outcome := OutcomeProcessed
	switch {
	case err == nil:
	case IsPermanentError(err):
		outcome = OutcomeDecodeFailed
		logging.Ctx(ctx).Warn().Err(err).
			Str("stream", stream).
			Str("message_uuid", msg.UUID).
			Msg("Dropping undecodable event")
		err = nil
	case errors.Is(err, lifecycle.ErrOrphanPayment):
		outcome = OutcomeOrphan
		err = nil
	default:
		outcome = OutcomeFailed
		logging.Ctx(ctx).Error().Err(err).
			Str("stream", stream).
			Str("message_uuid", msg.UUID).
			Msg("Event handling failed, requesting redelivery")
	}

	metrics.RecordEvent(stream, outcome, time.Since(start))
	return err
}
