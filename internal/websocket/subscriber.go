// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package websocket

import "sync/atomic"

// Kind is the transport a subscriber is attached through.
type Kind string

const (
	KindWebSocket Kind = "websocket"
	KindSSE       Kind = "sse"
)

// sendBuffer is the number of messages a subscriber may fall behind before
// it is pruned.
const sendBuffer = 256

// subscriberIDCounter hands out monotonically increasing ids so broadcasts
// visit subscribers in a stable order.
var subscriberIDCounter atomic.Uint64

// Subscriber is one registered live consumer. The Hub closes the channel
// returned by Messages when the subscriber is pruned, unregistered, or the
// Hub shuts down.
type Subscriber struct {
	id   uint64
	kind Kind
	send chan Message
}

// NewSubscriber creates an unregistered subscriber.
func NewSubscriber(kind Kind) *Subscriber {
	return &Subscriber{
		id:   subscriberIDCounter.Add(1),
		kind: kind,
		send: make(chan Message, sendBuffer),
	}
}

// ID returns the subscriber's unique id.
func (s *Subscriber) ID() uint64 { return s.id }

// Kind returns the subscriber's transport.
func (s *Subscriber) Kind() Kind { return s.kind }

// Messages returns the subscriber's delivery channel.
func (s *Subscriber) Messages() <-chan Message { return s.send }

// offer attempts a non-blocking delivery. Callers hold the Hub lock.
func (s *Subscriber) offer(msg Message) bool {
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}
