// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

// Package publisher fans lifecycle events out to the outbound event stream
// and to live dashboard subscribers.
//
// Publish calls only encode and enqueue; they never block on the broker, so
// callers may hold a spot lock while publishing. A single goroutine (Serve)
// drains the queue in FIFO order, which keeps one spot's events in mutation
// order on every consumer. A broker failure is logged and counted and never
// reaches the caller. Outbound calls go through a circuit breaker so a dead
// broker is skipped quickly while the engine keeps running.
package publisher

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/parkwatch/internal/breaker"
	"github.com/tomtom215/parkwatch/internal/config"
	"github.com/tomtom215/parkwatch/internal/eventprocessor"
	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/metrics"
	"github.com/tomtom215/parkwatch/internal/models"
)

// BreakerName labels the outbound breaker in metrics.
const BreakerName = "event-publisher"

// Broadcaster pushes events to live subscribers. Satisfied by *websocket.Hub.
type Broadcaster interface {
	BroadcastSessionUpdate(ev models.SessionUpdateEvent)
	BroadcastAlert(ev models.AlertEvent)
}

// Publisher implements lifecycle.Publisher and suture.Service.
type Publisher struct {
	out    message.Publisher
	live   Broadcaster
	topics config.TopicsConfig
	cb     *breaker.Breaker

	mu    sync.Mutex
	queue []outbound
	wake  chan struct{}
}

// outbound is one queued event: the encoded message and its live push.
type outbound struct {
	ctx       context.Context
	topic     string
	spotID    string
	msg       *message.Message
	broadcast func()
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithBreakerSettings overrides the outbound circuit breaker settings.
func WithBreakerSettings(s breaker.Settings) Option {
	return func(p *Publisher) {
		p.cb = breaker.New(BreakerName, s)
	}
}

// New creates a Publisher. live may be nil when no dashboard is attached.
func New(out message.Publisher, live Broadcaster, topics config.TopicsConfig, opts ...Option) *Publisher {
	p := &Publisher{
		out:    out,
		live:   live,
		topics: topics,
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cb == nil {
		p.cb = breaker.New(BreakerName, breaker.DefaultSettings())
	}
	return p
}

// PublishSessionUpdate queues ev for the session-update topic and live subscribers.
func (p *Publisher) PublishSessionUpdate(ctx context.Context, ev models.SessionUpdateEvent) {
	var broadcast func()
	if p.live != nil {
		broadcast = func() { p.live.BroadcastSessionUpdate(ev) }
	}
	p.enqueue(ctx, p.topics.SessionUpdates, eventprocessor.EventTypeSessionUpdate, string(ev.SpotID), ev, broadcast)
}

// PublishAlert queues ev for the alert topic and live subscribers.
func (p *Publisher) PublishAlert(ctx context.Context, ev models.AlertEvent) {
	var broadcast func()
	if p.live != nil {
		broadcast = func() { p.live.BroadcastAlert(ev) }
	}
	p.enqueue(ctx, p.topics.Alerts, eventprocessor.EventTypeAlert, string(ev.SpotID), ev, broadcast)
}

func (p *Publisher) enqueue(ctx context.Context, topic, eventType, spotID string, v any, broadcast func()) {
	msg, err := eventprocessor.NewMessageWithContext(ctx, eventType, spotID, v)
	if err != nil {
		metrics.RecordPublish(topic, "encode_failed")
		logging.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("Failed to encode outbound event")
		return
	}

	p.mu.Lock()
	p.queue = append(p.queue, outbound{ctx: ctx, topic: topic, spotID: spotID, msg: msg, broadcast: broadcast})
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued events not yet handed to delivery.
func (p *Publisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Serve delivers queued events until ctx ends. Events still queued at
// shutdown are dropped and logged.
func (p *Publisher) Serve(ctx context.Context) error {
	for {
		if p.drain() > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			if n := p.Pending(); n > 0 {
				logging.Warn().Int("pending", n).Msg("Publisher stopped with undelivered events")
			}
			return ctx.Err()
		case <-p.wake:
		}
	}
}

// String implements fmt.Stringer for suture.
func (p *Publisher) String() string { return "event-publisher" }

// drain delivers everything queued so far, in order, and returns the count.
func (p *Publisher) drain() int {
	p.mu.Lock()
	batch := p.queue
	p.queue = nil
	p.mu.Unlock()

	for i := range batch {
		p.deliver(&batch[i])
	}
	return len(batch)
}

func (p *Publisher) deliver(o *outbound) {
	p.send(o.ctx, o.topic, o.spotID, o.msg)
	if o.broadcast != nil {
		o.broadcast()
	}
}

func (p *Publisher) send(ctx context.Context, topic, spotID string, msg *message.Message) {
	err := p.cb.Do(func() error {
		if err := p.out.Publish(topic, msg); err != nil {
			return fmt.Errorf("publish to %s: %w", topic, err)
		}
		return nil
	})

	switch {
	case err == nil:
		metrics.RecordPublish(topic, "success")
	case breaker.IsRejected(err):
		metrics.RecordPublish(topic, "rejected")
		logging.Ctx(ctx).Warn().Err(err).
			Str("topic", topic).
			Str("spot_id", spotID).
			Msg("Outbound event dropped: circuit open")
	default:
		metrics.RecordPublish(topic, "failure")
		logging.Ctx(ctx).Error().Err(err).
			Str("topic", topic).
			Str("spot_id", spotID).
			Str("message_uuid", msg.UUID).
			Msg("Failed to publish outbound event")
	}
}
