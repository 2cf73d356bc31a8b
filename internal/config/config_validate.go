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

// Grace period bounds accepted for UNPAID_GRACE.
const (
	minUnpaidGrace = time.Minute
	maxUnpaidGrace = 5 * time.Minute
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"json": true, "console": true,
}

var validStoreBackends = map[string]bool{
	"memory": true, "badger": true,
}

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateEngine,
		c.validateNATS,
		c.validateTopics,
		c.validateStore,
		c.validateArchive,
		c.validateNotify,
		c.validateServer,
		c.validateSecurity,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// validateEngine validates lifecycle thresholds
func (c *Config) validateEngine() error {
	e := c.Engine
	if e.ConfirmationWindow <= 0 {
		return fmt.Errorf("CONFIRMATION_WINDOW must be positive")
	}
	if e.SilenceTimeout <= 0 {
		return fmt.Errorf("SILENCE_TIMEOUT must be positive")
	}
	if e.UnpaidGrace < minUnpaidGrace || e.UnpaidGrace > maxUnpaidGrace {
		return fmt.Errorf("UNPAID_GRACE must be between 1m and 5m, got %s", e.UnpaidGrace)
	}
	rate, err := decimal.NewFromString(e.PaymentRate)
	if err != nil {
		return fmt.Errorf("PAYMENT_RATE is not a decimal: %w", err)
	}
	if !rate.IsPositive() {
		return fmt.Errorf("PAYMENT_RATE must be positive, got %s", e.PaymentRate)
	}
	if e.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	// A sweep slower than the shortest threshold would miss deadlines by more than one tick.
	shortest := min(e.SilenceTimeout, e.UnpaidGrace)
	if e.SweepInterval > shortest {
		return fmt.Errorf("SWEEP_INTERVAL (%s) must not exceed the shortest threshold (%s)", e.SweepInterval, shortest)
	}
	if e.WatchdogInterval < 0 || e.WatchdogInterval > e.SilenceTimeout {
		return fmt.Errorf("WATCHDOG_INTERVAL must be between 0 and SILENCE_TIMEOUT")
	}
	if e.DebounceResetGap < 0 {
		return fmt.Errorf("DEBOUNCE_RESET_GAP must not be negative")
	}
	return nil
}

// validateNATS validates NATS configuration (only if enabled)
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if err := validateURL("NATS_URL", c.NATS.URL, natsSchemes); err != nil {
		return err
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	if c.NATS.StreamName == "" {
		return fmt.Errorf("NATS_STREAM_NAME is required")
	}
	if c.NATS.SubscribersCount < 1 || c.NATS.SubscribersCount > 32 {
		return fmt.Errorf("NATS_SUBSCRIBERS must be between 1 and 32")
	}
	if c.NATS.MaxDeliver < 1 {
		return fmt.Errorf("NATS_MAX_DELIVER must be at least 1")
	}
	if c.NATS.AckWait < time.Second {
		return fmt.Errorf("NATS_ACK_WAIT must be at least 1s")
	}
	return nil
}

// validateTopics ensures every stream has a distinct name
func (c *Config) validateTopics() error {
	topics := map[string]string{
		"TOPIC_PRESENCE":        c.Topics.Presence,
		"TOPIC_PAYMENT":         c.Topics.Payment,
		"TOPIC_SESSION_UPDATES": c.Topics.SessionUpdates,
		"TOPIC_ALERTS":          c.Topics.Alerts,
	}
	seen := make(map[string]string, len(topics))
	for name, topic := range topics {
		if topic == "" {
			return fmt.Errorf("%s is required", name)
		}
		if other, dup := seen[topic]; dup {
			return fmt.Errorf("%s and %s must differ, both are %q", name, other, topic)
		}
		seen[topic] = name
	}
	return nil
}

// validateStore validates the session store backend
func (c *Config) validateStore() error {
	if !validStoreBackends[c.Store.Backend] {
		return fmt.Errorf("STORE_BACKEND must be one of: memory, badger")
	}
	if c.Store.Backend == "badger" && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required when STORE_BACKEND=badger")
	}
	return nil
}

func (c *Config) validateArchive() error {
	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("ARCHIVE_PATH is required when ARCHIVE_ENABLED=true")
	}
	return nil
}

func (c *Config) validateNotify() error {
	if !c.Notify.Enabled {
		return nil
	}
	if c.Notify.WebhookURL != "" {
		if err := validateURL("NOTIFY_WEBHOOK_URL", c.Notify.WebhookURL, httpSchemes); err != nil {
			return err
		}
	}
	if c.Notify.RatePerMinute < 1 {
		return fmt.Errorf("NOTIFY_RATE_PER_MINUTE must be at least 1")
	}
	if c.Notify.Timeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive")
	}
	return nil
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Server.RateLimitWindow < time.Second {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s")
		}
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	if !c.Security.RequirePaymentAuth {
		return nil
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters when REQUIRE_PAYMENT_AUTH=true")
	}
	return nil
}

// validateLogging validates the log level and format
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
