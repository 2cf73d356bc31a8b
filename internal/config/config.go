// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	Engine   EngineConfig   `koanf:"engine"`
	NATS     NATSConfig     `koanf:"nats"`
	Topics   TopicsConfig   `koanf:"topics"`
	Store    StoreConfig    `koanf:"store"`
	Archive  ArchiveConfig  `koanf:"archive"`
	Notify   NotifyConfig   `koanf:"notify"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// EngineConfig holds the session lifecycle thresholds.
type EngineConfig struct {
	// ConfirmationWindow is how long presence must persist before a session opens.
	ConfirmationWindow time.Duration `koanf:"confirmation_window"`

	// SilenceTimeout is the heartbeat gap after which the watchdog closes a session.
	SilenceTimeout time.Duration `koanf:"silence_timeout"`

	// UnpaidGrace is how long a session may stay unpaid before an overstay alert.
	UnpaidGrace time.Duration `koanf:"unpaid_grace"`

	// PaymentRate is the currency amount that buys one minute, as a decimal string.
	PaymentRate string `koanf:"payment_rate"`

	// SweepInterval is the tick period of the overstay monitor.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// WatchdogInterval is the tick period of the termination watchdog.
	// Zero means SweepInterval.
	WatchdogInterval time.Duration `koanf:"watchdog_interval"`

	// DebounceResetGap is the observation gap that discards a pending
	// debounce run. Zero disables the reset.
	DebounceResetGap time.Duration `koanf:"debounce_reset_gap"`
}

// Rate returns PaymentRate parsed as a decimal.
// Validate guarantees the value parses and is positive.
func (e EngineConfig) Rate() decimal.Decimal {
	d, err := decimal.NewFromString(e.PaymentRate)
	if err != nil {
		return decimal.New(10, -2)
	}
	return d
}

// EffectiveWatchdogInterval returns WatchdogInterval, falling back to SweepInterval.
func (e EngineConfig) EffectiveWatchdogInterval() time.Duration {
	if e.WatchdogInterval > 0 {
		return e.WatchdogInterval
	}
	return e.SweepInterval
}

// NATSConfig holds event transport configuration.
// When Enabled is false the process runs on the in-process memory transport.
type NATSConfig struct {
	// Enabled selects NATS JetStream as the transport.
	Enabled bool `koanf:"enabled"`

	// URL is the NATS server connection URL.
	URL string `koanf:"url"`

	// EmbeddedServer starts an in-process NATS server.
	// If false, expects an external NATS server at URL.
	EmbeddedServer bool `koanf:"embedded_server"`

	// StoreDir is the JetStream storage directory.
	StoreDir string `koanf:"store_dir"`

	// MaxMemory is the maximum memory for JetStream in bytes.
	MaxMemory int64 `koanf:"max_memory"`

	// MaxStore is the maximum disk storage for JetStream in bytes.
	MaxStore int64 `koanf:"max_store"`

	// StreamName is the JetStream stream holding all parking topics.
	StreamName string `koanf:"stream_name"`

	// StreamRetention is how long events stay in the stream.
	StreamRetention time.Duration `koanf:"stream_retention"`

	// DurablePrefix prefixes each consumer's durable name.
	DurablePrefix string `koanf:"durable_prefix"`

	// SubscribersCount is the number of concurrent subscribers per consumer.
	// One keeps per-spot FIFO delivery.
	SubscribersCount int `koanf:"subscribers_count"`

	// AckWait is how long JetStream waits for an ack before redelivery.
	AckWait time.Duration `koanf:"ack_wait"`

	// MaxDeliver bounds redeliveries of a nacked message.
	MaxDeliver int `koanf:"max_deliver"`

	// RouterThrottlePerSecond limits handler throughput. Zero is unlimited.
	RouterThrottlePerSecond int `koanf:"router_throttle_per_second"`

	// RouterDeduplicationEnabled drops messages whose UUID was seen within the TTL.
	RouterDeduplicationEnabled bool `koanf:"router_deduplication_enabled"`

	// RouterDeduplicationTTL is the window for duplicate suppression.
	RouterDeduplicationTTL time.Duration `koanf:"router_deduplication_ttl"`

	// RouterCloseTimeout bounds graceful router shutdown.
	RouterCloseTimeout time.Duration `koanf:"router_close_timeout"`
}

// TopicsConfig names the inbound and outbound streams.
type TopicsConfig struct {
	Presence       string `koanf:"presence"`
	Payment        string `koanf:"payment"`
	SessionUpdates string `koanf:"session_updates"`
	Alerts         string `koanf:"alerts"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	// Backend is "memory" or "badger".
	Backend string `koanf:"backend"`

	// Path is the BadgerDB directory.
	Path string `koanf:"path"`

	// SyncWrites fsyncs every write.
	SyncWrites bool `koanf:"sync_writes"`
}

// ArchiveConfig holds the DuckDB history archive settings.
type ArchiveConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// NotifyConfig holds the alert notification dispatcher settings.
type NotifyConfig struct {
	// Enabled turns on the dispatcher. Without a webhook it only logs.
	Enabled bool `koanf:"enabled"`

	// WebhookURL receives a POST per alert when set.
	WebhookURL string `koanf:"webhook_url"`

	// RatePerMinute caps webhook deliveries.
	RatePerMinute int `koanf:"rate_per_minute"`

	// Timeout bounds a single webhook request.
	Timeout time.Duration `koanf:"timeout"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port              int           `koanf:"port"`
	Host              string        `koanf:"host"`
	Timeout           time.Duration `koanf:"timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds authentication settings for the payment gateway.
type SecurityConfig struct {
	// JWTSecret signs and verifies HS256 bearer tokens.
	JWTSecret string `koanf:"jwt_secret"`

	// RequirePaymentAuth protects the payment endpoint with a bearer token.
	RequirePaymentAuth bool `koanf:"require_payment_auth"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load loads configuration from defaults, the optional config file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
