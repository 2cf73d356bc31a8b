// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/metrics"
	"github.com/tomtom215/parkwatch/internal/models"
)

// ErrHubStopped is returned by Register while the Hub is not running.
var ErrHubStopped = errors.New("websocket: hub not running")

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types pushed to subscribers.
const (
	MessageTypeSessionUpdate = "session_update"
	MessageTypeAlert         = "alert"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
)

// Message is the envelope every subscriber receives.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of live subscribers and broadcasts messages to them.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	running     bool
	broadcast   chan Message
}

// NewHub creates a Hub. Registrations are accepted once RunWithContext starts.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		broadcast:   make(chan Message, 256),
	}
}

// RunWithContext delivers queued broadcasts until ctx is canceled, then
// closes every subscriber and returns ctx.Err().
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	for {
		// Shutdown wins over pending broadcasts.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case msg := <-h.broadcast:
			h.broadcastToSubscribers(msg)
		}
	}
}

// Register adds s to the live set.
func (h *Hub) Register(s *Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return ErrHubStopped
	}
	h.subscribers[s] = struct{}{}
	metrics.LiveSubscribers.Set(float64(len(h.subscribers)))
	logging.Info().
		Uint64("subscriber_id", s.id).
		Str("kind", string(s.kind)).
		Int("total_subscribers", len(h.subscribers)).
		Msg("Live subscriber registered")
	return nil
}

// Unregister removes s after a normal disconnect. Unknown subscribers are ignored.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.remove(s) {
		logging.Info().
			Uint64("subscriber_id", s.id).
			Str("kind", string(s.kind)).
			Int("total_subscribers", len(h.subscribers)).
			Msg("Live subscriber disconnected")
	}
}

// Drop prunes s after its transport failed.
func (h *Hub) Drop(s *Subscriber, cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.remove(s) {
		h.logPruned(s, cause)
	}
}

// remove deletes s and closes its channel. Callers hold h.mu.
func (h *Hub) remove(s *Subscriber) bool {
	if _, ok := h.subscribers[s]; !ok {
		return false
	}
	delete(h.subscribers, s)
	close(s.send)
	metrics.LiveSubscribers.Set(float64(len(h.subscribers)))
	return true
}

func (h *Hub) logPruned(s *Subscriber, cause error) {
	metrics.SubscribersPruned.Inc()
	ev := logging.Warn().
		Uint64("subscriber_id", s.id).
		Str("kind", string(s.kind)).
		Int("total_subscribers", len(h.subscribers))
	if cause != nil {
		ev = ev.Err(cause)
	}
	ev.Msg("Pruned failed live subscriber")
}

var errSlowSubscriber = errors.New("send buffer full")

// broadcastToSubscribers offers msg to every subscriber in id order and
// prunes the ones that cannot take it.
func (h *Hub) broadcastToSubscribers(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.sortedLocked() {
		if !s.offer(msg) {
			h.remove(s)
			h.logPruned(s, errSlowSubscriber)
		}
	}
}

func (h *Hub) sortedLocked() []*Subscriber {
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
	return subs
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	n := len(h.subscribers)
	for _, s := range h.sortedLocked() {
		h.remove(s)
	}
	h.running = false
	h.mu.Unlock()

	// Context cancellation is the normal stop path, so it is not logged as an error.
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(shutdownReason(ctx))).
		Int("subscribers_closed", n).
		Msg("Live subscriber hub stopped")
}

func shutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// BroadcastSessionUpdate queues a session update for every subscriber.
func (h *Hub) BroadcastSessionUpdate(ev models.SessionUpdateEvent) {
	h.BroadcastJSON(MessageTypeSessionUpdate, ev)
}

// BroadcastAlert queues an alert for every subscriber.
func (h *Hub) BroadcastAlert(ev models.AlertEvent) {
	h.BroadcastJSON(MessageTypeAlert, ev)
}

// BroadcastJSON queues a message without blocking. When the queue is full
// the message is dropped for all subscribers.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		metrics.RecordPublish("live", "dropped")
		logging.Warn().Str("message_type", messageType).Msg("Broadcast queue full, dropping message")
	}
}

// SubscriberCount returns the number of registered subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Running reports whether the Hub accepts registrations.
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
