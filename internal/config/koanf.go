// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/parkwatch/config.yaml",
	"/etc/parkwatch/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			ConfirmationWindow: 30 * time.Second,
			SilenceTimeout:     30 * time.Second,
			UnpaidGrace:        5 * time.Minute,
			PaymentRate:        "0.10",
			SweepInterval:      10 * time.Second,
			WatchdogInterval:   0, // Same as SweepInterval
			DebounceResetGap:   10 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:                    false, // Memory transport by default
			URL:                        "nats://127.0.0.1:4222",
			EmbeddedServer:             true,
			StoreDir:                   "/data/nats/jetstream",
			MaxMemory:                  256 << 20, // 256MB
			MaxStore:                   1 << 30,   // 1GB
			StreamName:                 "PARKING",
			StreamRetention:            7 * 24 * time.Hour,
			DurablePrefix:              "parkwatch",
			SubscribersCount:           1,
			AckWait:                    30 * time.Second,
			MaxDeliver:                 5,
			RouterThrottlePerSecond:    0,
			RouterDeduplicationEnabled: false,
			RouterDeduplicationTTL:     5 * time.Minute,
			RouterCloseTimeout:         30 * time.Second,
		},
		Topics: TopicsConfig{
			Presence:       "parking-events",
			Payment:        "payment-events",
			SessionUpdates: "session.updates",
			Alerts:         "alert.incident",
		},
		Store: StoreConfig{
			Backend:    "memory",
			Path:       "/data/sessions",
			SyncWrites: false,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Path:    "/data/parkwatch.duckdb",
		},
		Notify: NotifyConfig{
			Enabled:       true,
			WebhookURL:    "",
			RatePerMinute: 60,
			Timeout:       10 * time.Second,
		},
		Server: ServerConfig{
			Port:              8080,
			Host:              "0.0.0.0",
			Timeout:           30 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Security: SecurityConfig{
			JWTSecret:          "",
			RequirePaymentAuth: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak in.
var envMappings = map[string]string{
	// Engine
	"confirmation_window": "engine.confirmation_window",
	"silence_timeout":     "engine.silence_timeout",
	"unpaid_grace":        "engine.unpaid_grace",
	"payment_rate":        "engine.payment_rate",
	"sweep_interval":      "engine.sweep_interval",
	"watchdog_interval":   "engine.watchdog_interval",
	"debounce_reset_gap":  "engine.debounce_reset_gap",

	// NATS
	"nats_enabled":          "nats.enabled",
	"nats_url":              "nats.url",
	"nats_embedded":         "nats.embedded_server",
	"nats_store_dir":        "nats.store_dir",
	"nats_max_memory":       "nats.max_memory",
	"nats_max_store":        "nats.max_store",
	"nats_stream_name":      "nats.stream_name",
	"nats_retention":        "nats.stream_retention",
	"nats_durable_prefix":   "nats.durable_prefix",
	"nats_subscribers":      "nats.subscribers_count",
	"nats_ack_wait":         "nats.ack_wait",
	"nats_max_deliver":      "nats.max_deliver",
	"nats_router_throttle":  "nats.router_throttle_per_second",
	"nats_router_dedup":     "nats.router_deduplication_enabled",
	"nats_router_dedup_ttl": "nats.router_deduplication_ttl",
	"nats_router_close":     "nats.router_close_timeout",

	// Topics
	"topic_presence":        "topics.presence",
	"topic_payment":         "topics.payment",
	"topic_session_updates": "topics.session_updates",
	"topic_alerts":          "topics.alerts",

	// Store
	"store_backend":     "store.backend",
	"store_path":        "store.path",
	"store_sync_writes": "store.sync_writes",

	// Archive
	"archive_enabled": "archive.enabled",
	"archive_path":    "archive.path",

	// Notify
	"notify_enabled":         "notify.enabled",
	"notify_webhook_url":     "notify.webhook_url",
	"notify_rate_per_minute": "notify.rate_per_minute",
	"notify_timeout":         "notify.timeout",

	// Server
	"http_port":           "server.port",
	"http_host":           "server.host",
	"http_timeout":        "server.timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",

	// Security
	"jwt_secret":           "security.jwt_secret",
	"require_payment_auth": "security.require_payment_auth",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - SILENCE_TIMEOUT -> engine.silence_timeout
//   - NATS_ENABLED -> nats.enabled
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
