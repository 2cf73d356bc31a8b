// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultNATSImage is the NATS server image used for integration tests.
	DefaultNATSImage = "nats:2.10-alpine"

	// NATSClientPort is the client port inside the container.
	NATSClientPort = "4222/tcp"
)

// NATSContainer is a running JetStream-enabled NATS server.
type NATSContainer struct {
	testcontainers.Container
	URL string
}

// NATSOption configures the container.
type NATSOption func(*natsConfig)

type natsConfig struct {
	image        string
	startTimeout time.Duration
}

// WithNATSImage overrides the image.
func WithNATSImage(image string) NATSOption {
	return func(c *natsConfig) { c.image = image }
}

// WithNATSStartTimeout overrides the 60s startup timeout.
func WithNATSStartTimeout(d time.Duration) NATSOption {
	return func(c *natsConfig) { c.startTimeout = d }
}

// NewNATSContainer starts NATS with JetStream and waits until it accepts
// client connections.
func NewNATSContainer(ctx context.Context, opts ...NATSOption) (*NATSContainer, error) {
	cfg := &natsConfig{image: DefaultNATSImage, startTimeout: 60 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{NATSClientPort},
		Cmd:          []string{"-js", "-sd", "/data"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(NATSClientPort),
			wait.ForLog("Server is ready"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats container: %w", err)
	}

	url, err := c.PortEndpoint(ctx, NATSClientPort, "nats")
	if err != nil {
		c.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("nats endpoint: %w", err)
	}

	return &NATSContainer{Container: c, URL: url}, nil
}
