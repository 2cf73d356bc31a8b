// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

var (
	httpSchemes = []string{"http", "https"}
	natsSchemes = []string{"nats", "tls", "ws", "wss"}
)

// validateURL checks that rawURL parses, uses one of schemes and names a host.
// field is the environment variable reported in the error.
func validateURL(field, rawURL string, schemes []string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", field, err)
	}
	if !slices.Contains(schemes, u.Scheme) {
		return fmt.Errorf("%s scheme must be one of %s, got %q", field, strings.Join(schemes, ", "), u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s needs a host, e.g. %s://localhost:4222", field, schemes[0])
	}
	return nil
}
