// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/parkwatch/internal/config"
	"github.com/tomtom215/parkwatch/internal/logging"
)

// Transport kinds.
const (
	KindMemory = "memory"
	KindNATS   = "nats"
)

// Transport bundles the publisher and a per-consumer subscriber factory for
// one message backend.
type Transport struct {
	kind          string
	publisher     message.Publisher
	newSubscriber func(consumer string) (message.Subscriber, error)
	ping          func(ctx context.Context) error

	mu      sync.Mutex
	closers []func() error
	closed  bool
}

// Kind returns KindMemory or KindNATS.
func (t *Transport) Kind() string { return t.kind }

// Publisher returns the shared publisher.
func (t *Transport) Publisher() message.Publisher { return t.publisher }

// Subscriber returns a subscriber for consumer. Consumers with different
// names each receive every message.
func (t *Transport) Subscriber(consumer string) (message.Subscriber, error) {
	return t.newSubscriber(consumer)
}

// Ping reports whether the backend is reachable.
func (t *Transport) Ping(ctx context.Context) error {
	if t.ping == nil {
		return nil
	}
	return t.ping(ctx)
}

func (t *Transport) onClose(fn func() error) {
	t.mu.Lock()
	t.closers = append(t.closers, fn)
	t.mu.Unlock()
}

// Close releases the publisher, every subscriber handed out and any
// connection the transport opened, in reverse order.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewMemoryTransport returns an in-process transport on watermill's
// gochannel. Every Subscribe call gets its own copy of each message, which
// gives the same per-consumer fan-out as JetStream durables.
//
// Publish blocks until every subscriber acked, so messages from one
// publisher reach each consumer in publish order. Handlers must never
// publish synchronously on this transport.
func NewMemoryTransport(logger watermill.LoggerAdapter) *Transport {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, logger)

	t := &Transport{
		kind:      KindMemory,
		publisher: pubSub,
		newSubscriber: func(string) (message.Subscriber, error) {
			return pubSub, nil
		},
	}
	t.onClose(pubSub.Close)
	return t
}

// NewNATSTransport connects to JetStream at url, ensures the parking stream
// exists and returns a transport whose subscribers are durable consumers.
func NewNATSTransport(ctx context.Context, url string, cfg *config.NATSConfig, topics *config.TopicsConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	nc, err := natsgo.Connect(url, connOptions("parkwatch-admin", -1, 2*time.Second, logger)...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := StreamConfigFrom(cfg, topics)
	initializer, err := NewStreamInitializer(js, &streamCfg)
	if err != nil {
		nc.Close()
		return nil, err
	}
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := initializer.EnsureStream(initCtx); err != nil {
		nc.Close()
		return nil, err
	}
	logging.Info().
		Str("stream", streamCfg.Name).
		Strs("subjects", streamCfg.Subjects).
		Msg("JetStream stream ready")

	pub, err := NewNATSPublisher(DefaultPublisherConfig(url), logger)
	if err != nil {
		nc.Close()
		return nil, err
	}

	t := &Transport{
		kind:      KindNATS,
		publisher: pub,
		ping: func(ctx context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("NATS connection %s", nc.Status())
			}
			if !initializer.IsHealthy(ctx) {
				return fmt.Errorf("stream %s unavailable", streamCfg.Name)
			}
			return nil
		},
	}
	t.onClose(func() error { nc.Close(); return nil })
	t.onClose(pub.Close)
	t.newSubscriber = func(consumer string) (message.Subscriber, error) {
		subCfg := SubscriberConfigFor(cfg, consumer)
		subCfg.URL = url
		sub, err := NewNATSSubscriber(&subCfg, logger)
		if err != nil {
			return nil, err
		}
		t.onClose(sub.Close)
		return sub, nil
	}
	return t, nil
}
