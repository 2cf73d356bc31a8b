// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package eventprocessor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/parkwatch/internal/cache"
)

// Router wraps message.Router with the parking middleware stack.
type Router struct {
	router  *message.Router
	config  RouterConfig
	logger  watermill.LoggerAdapter
	dedup   *Deduplicator
	running atomic.Bool

	mu       sync.Mutex
	handlers map[string]*message.Handler
}

// Deduplicator implements middleware.ExpiringKeyRepository over an LRU.
type Deduplicator struct {
	seen *cache.LRU
}

// NewDeduplicator remembers up to 10000 keys for ttl.
func NewDeduplicator(ttl time.Duration) *Deduplicator {
	return &Deduplicator{seen: cache.NewLRU(10000, ttl)}
}

// IsDuplicate records key and reports whether it was already present.
func (d *Deduplicator) IsDuplicate(_ context.Context, key string) (bool, error) {
	return d.seen.Seen(key), nil
}

// deduplicationTimeout bounds a repository lookup. It is set up front so
// watermill never fills in defaults on the struct shared by every handler.
const deduplicationTimeout = time.Second

// middleware keys messages by UUID.
func (d *Deduplicator) middleware() *middleware.Deduplicator {
	return &middleware.Deduplicator{
		KeyFactory: func(msg *message.Message) (string, error) {
			return msg.UUID, nil
		},
		Repository: d,
		Timeout:    deduplicationTimeout,
	}
}

// forgetOnError removes a message's key when its handler fails, so the
// redelivery is not mistaken for a duplicate.
func (d *Deduplicator) forgetOnError(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		out, err := h(msg)
		if err != nil {
			d.seen.Forget(msg.UUID)
		}
		return out, err
	}
}

// NewRouter creates a Router. Middleware, outermost first:
//   - Recoverer turns handler panics into errors (and so into a nack)
//   - Throttle caps throughput when ThrottlePerSecond > 0
//   - Deduplicator drops repeated message UUIDs when enabled
func NewRouter(cfg *RouterConfig, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg == nil {
		def := DefaultRouterConfig()
		cfg = &def
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	r := &Router{
		router:   wmRouter,
		config:   *cfg,
		logger:   logger,
		handlers: make(map[string]*message.Handler),
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	if cfg.ThrottlePerSecond > 0 {
		throttle := middleware.NewThrottle(cfg.ThrottlePerSecond, time.Second)
		wmRouter.AddMiddleware(throttle.Middleware)
	}

	if cfg.DeduplicationEnabled {
		r.dedup = NewDeduplicator(cfg.DeduplicationTTL)
		dedup := r.dedup.middleware()
		wmRouter.AddMiddleware(dedup.Middleware, r.dedup.forgetOnError)
	}

	return r, nil
}

// AddConsumerHandler registers a handler that produces no output messages.
func (r *Router) AddConsumerHandler(name, topic string, subscriber message.Subscriber, handler message.NoPublishHandlerFunc) *message.Handler {
	h := r.router.AddConsumerHandler(name, topic, subscriber, handler)
	r.mu.Lock()
	r.handlers[name] = h
	r.mu.Unlock()
	return h
}

// Handlers returns the registered handler names, sorted.
func (r *Router) Handlers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run starts every handler and blocks until ctx ends or Close is called.
func (r *Router) Run(ctx context.Context) error {
	r.running.Store(true)
	defer r.running.Store(false)
	return r.router.Run(ctx)
}

// Running returns a channel closed once all handlers are subscribed.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for in-flight messages.
func (r *Router) Close() error {
	return r.router.Close()
}

// IsRunning reports whether Run is active.
func (r *Router) IsRunning() bool {
	return r.running.Load()
}
