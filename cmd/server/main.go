// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/parkwatch/internal/config"
	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		logging.Error().Err(err).Msg("Parkwatch stopped with error")
		os.Exit(1)
	}
	logging.Info().Msg("Parkwatch stopped gracefully")
}

// run builds the application, serves it until ctx ends or the tree
// terminates, then releases every resource.
func run(ctx context.Context, cfg *config.Config) error {
	logging.Info().
		Bool("nats", cfg.NATS.Enabled).
		Str("store", cfg.Store.Backend).
		Bool("archive", cfg.Archive.Enabled).
		Bool("notify", cfg.Notify.Enabled).
		Msg("Starting Parkwatch")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	a.addServices(tree)

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	treeErr := <-errCh
	if errors.Is(treeErr, context.Canceled) {
		treeErr = nil
	}
	if treeErr != nil {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}
	return treeErr
}
