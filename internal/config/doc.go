// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

/*
Package config provides centralized configuration management for Parkwatch.

Configuration is layered with Koanf v2:

 1. Struct defaults (defaultConfig)
 2. Optional YAML file (CONFIG_PATH, config.yaml, /etc/parkwatch/config.yaml)
 3. Environment variables mapped through envTransformFunc

# Configuration Structure

  - EngineConfig: debounce, silence, grace and payment-rate settings
  - NATSConfig: JetStream transport or the in-process memory transport
  - TopicsConfig: stream names for presence, payment, session updates and alerts
  - StoreConfig: session store backend (memory or badger)
  - ArchiveConfig: DuckDB history archive
  - NotifyConfig: alert notification dispatcher
  - ServerConfig: HTTP listener, CORS and rate limiting
  - SecurityConfig: JWT bearer auth for the payment gateway
  - LoggingConfig: zerolog level and format

# Engine Environment Variables

  - CONFIRMATION_WINDOW: continuous presence needed to open a session (default: 30s)
  - SILENCE_TIMEOUT: heartbeat gap after which a session is terminated (default: 30s)
  - UNPAID_GRACE: unpaid time before an overstay alert (default: 5m, 1m-5m)
  - PAYMENT_RATE: currency amount that buys one minute (default: 0.10)
  - SWEEP_INTERVAL: period of the overstay monitor and watchdog (default: 10s)
  - DEBOUNCE_RESET_GAP: silence that resets a pending debounce run (default: 10s, 0 disables)

# Usage

	cfg, err := config.Load()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
*/
package config
