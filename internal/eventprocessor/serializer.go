// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package eventprocessor

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/validation"
)

// Message metadata keys.
const (
	MetadataSpotID        = "spot_id"
	MetadataEventType     = "event_type"
	MetadataCorrelationID = "correlation_id"
)

// Values of MetadataEventType.
const (
	EventTypePresence      = "presence"
	EventTypePayment       = "payment"
	EventTypeSessionUpdate = "session_update"
	EventTypeAlert         = "alert"
)

// NewMessageWithContext is NewMessage plus the correlation id carried by ctx.
func NewMessageWithContext(ctx context.Context, eventType, spotID string, v any) (*message.Message, error) {
	msg, err := NewMessage(eventType, spotID, v)
	if err != nil {
		return nil, err
	}
	if cid := logging.CorrelationIDFromContext(ctx); cid != "" {
		msg.Metadata.Set(MetadataCorrelationID, cid)
	}
	return msg, nil
}

// Decode unmarshals and validates a message payload. Any failure is a
// *PermanentError wrapping ErrInvalidEvent.
func Decode[T any](payload []byte) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, NewPermanentError("decode payload", fmt.Errorf("%w: %v", ErrInvalidEvent, err))
	}
	if err := validation.ValidateStruct(&v); err != nil {
		return v, NewPermanentError("validate payload", fmt.Errorf("%w: %v", ErrInvalidEvent, err))
	}
	return v, nil
}

// Encode marshals v to JSON.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// NewMessage encodes v into a watermill message with a fresh UUID.
// The UUID doubles as the JetStream Nats-Msg-Id for broker deduplication.
func NewMessage(eventType, spotID string, v any) (*message.Message, error) {
	data, err := Encode(v)
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set(MetadataEventType, eventType)
	if spotID != "" {
		msg.Metadata.Set(MetadataSpotID, spotID)
	}
	return msg, nil
}
