// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("websocket: response writer does not support flushing")

// StreamSSE registers a server-sent events subscriber and writes every hub
// message to w until ctx ends or the hub closes the subscriber. A write
// failure prunes the subscriber and is returned.
func StreamSSE(ctx context.Context, w http.ResponseWriter, hub *Hub) error {
	return streamSSE(ctx, w, hub, pingPeriod)
}

func streamSSE(ctx context.Context, w http.ResponseWriter, hub *Hub, keepAlive time.Duration) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrStreamingUnsupported
	}

	sub := NewSubscriber(KindSSE)
	if err := hub.Register(sub); err != nil {
		return err
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hub.Unregister(sub)
			return nil

		case msg, ok := <-sub.send:
			if !ok {
				return nil
			}
			if err := writeEvent(w, msg); err != nil {
				hub.Drop(sub, err)
				return err
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				hub.Drop(sub, err)
				return err
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", msg.Type, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, payload)
	return err
}
