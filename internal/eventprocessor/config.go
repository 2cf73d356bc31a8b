// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package eventprocessor

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/parkwatch/internal/config"
)

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns defaults for the embedded NATS server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   1 << 30,  // 1GB
		JetStreamMaxStore: 10 << 30, // 10GB
	}
}

// ServerConfigFrom derives the embedded server settings from the NATS
// section. The server listens on the host and port of cfg.URL.
func ServerConfigFrom(cfg *config.NATSConfig) (ServerConfig, error) {
	sc := DefaultServerConfig()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return sc, fmt.Errorf("%w: nats url: %v", ErrInvalidConfig, err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return sc, fmt.Errorf("%w: nats url %q needs host:port", ErrInvalidConfig, cfg.URL)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return sc, fmt.Errorf("%w: nats port %q", ErrInvalidConfig, portStr)
	}
	sc.Host = host
	sc.Port = port
	if cfg.StoreDir != "" {
		sc.StoreDir = cfg.StoreDir
	}
	if cfg.MaxMemory > 0 {
		sc.JetStreamMaxMem = cfg.MaxMemory
	}
	if cfg.MaxStore > 0 {
		sc.JetStreamMaxStore = cfg.MaxStore
	}
	return sc, nil
}

// PublisherConfig holds publisher configuration.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool // nolint:revive
}

// DefaultPublisherConfig returns defaults for the publisher.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1, // Unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		EnableTrackMsgID: true,
	}
}

// SubscriberConfig holds subscriber configuration for one consumer.
type SubscriberConfig struct {
	URL string

	// DurableName identifies the consumer. Distinct names receive every
	// message independently.
	DurableName      string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration

	// StreamName binds the consumer to the pre-created stream.
	StreamName string
}

// DefaultSubscriberConfig returns defaults for a subscriber.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		DurableName:      "parkwatch",
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       10,
		MaxAckPending:    1000,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// SubscriberConfigFor returns the subscriber settings for consumer.
func SubscriberConfigFor(cfg *config.NATSConfig, consumer string) SubscriberConfig {
	sc := DefaultSubscriberConfig(cfg.URL)
	sc.DurableName = DurableName(cfg.DurablePrefix, consumer)
	sc.StreamName = cfg.StreamName
	if cfg.SubscribersCount > 0 {
		sc.SubscribersCount = cfg.SubscribersCount
	}
	if cfg.AckWait > 0 {
		sc.AckWaitTimeout = cfg.AckWait
	}
	if cfg.MaxDeliver != 0 {
		sc.MaxDeliver = cfg.MaxDeliver
	}
	return sc
}

var durableReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// DurableName builds a JetStream-safe durable name. Durable names may not
// contain dots or wildcards.
func DurableName(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, durableReplacer.Replace(p))
		}
	}
	return strings.Join(nonEmpty, "-")
}

// StreamConfig defines the parking event stream.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns the stream settings for the stock topics.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name: "PARKING",
		Subjects: []string{
			"parking-events",
			"payment-events",
			"session.updates",
			"alert.incident",
		},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        1 << 30, // 1GB
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// StreamConfigFrom builds the stream settings covering every configured topic.
func StreamConfigFrom(cfg *config.NATSConfig, topics *config.TopicsConfig) StreamConfig {
	sc := DefaultStreamConfig()
	if cfg.StreamName != "" {
		sc.Name = cfg.StreamName
	}
	if cfg.StreamRetention > 0 {
		sc.MaxAge = cfg.StreamRetention
	}
	if cfg.MaxStore > 0 && cfg.MaxStore < sc.MaxBytes {
		sc.MaxBytes = cfg.MaxStore
	}
	sc.Subjects = []string{topics.Presence, topics.Payment, topics.SessionUpdates, topics.Alerts}
	return sc
}

// RouterConfig holds configuration for the Watermill Router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers to finish when closing.
	CloseTimeout time.Duration

	// ThrottlePerSecond limits handler throughput. Zero disables it.
	ThrottlePerSecond int64

	// DeduplicationEnabled drops messages whose UUID was seen within the TTL.
	DeduplicationEnabled bool
	DeduplicationTTL     time.Duration
}

// DefaultRouterConfig returns defaults for the Router.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		ThrottlePerSecond:    0,
		DeduplicationEnabled: false,
		DeduplicationTTL:     5 * time.Minute,
	}
}

// RouterConfigFrom copies the router settings from the NATS section.
func RouterConfigFrom(cfg *config.NATSConfig) RouterConfig {
	rc := DefaultRouterConfig()
	if cfg.RouterCloseTimeout > 0 {
		rc.CloseTimeout = cfg.RouterCloseTimeout
	}
	rc.ThrottlePerSecond = int64(cfg.RouterThrottlePerSecond)
	rc.DeduplicationEnabled = cfg.RouterDeduplicationEnabled
	if cfg.RouterDeduplicationTTL > 0 {
		rc.DeduplicationTTL = cfg.RouterDeduplicationTTL
	}
	return rc
}
