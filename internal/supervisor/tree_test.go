// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// stubService runs until canceled, optionally failing its first runs.
type stubService struct {
	name     string
	failures int32
	starts   atomic.Int32
}

func (s *stubService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	if n <= s.failures {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubService) String() string { return s.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitStarts(t *testing.T, s *stubService, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.starts.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("%s started %d times, want >= %d", s.name, s.starts.Load(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewSupervisorTree_Defaults(t *testing.T) {
	tests := []struct {
		name string
		in   TreeConfig
		want TreeConfig
	}{
		{"zero value", TreeConfig{}, DefaultTreeConfig()},
		{
			"partial",
			TreeConfig{FailureBackoff: time.Second},
			TreeConfig{FailureThreshold: 5, FailureDecay: 30, FailureBackoff: time.Second, ShutdownTimeout: 10 * time.Second},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := NewSupervisorTree(quietLogger(), tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if tree.config != tt.want {
				t.Errorf("config = %+v, want %+v", tree.config, tt.want)
			}
			if tree.Root() == nil {
				t.Error("root is nil")
			}
		})
	}
}

func TestSupervisorTree_RunsEveryLayer(t *testing.T) {
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	sweep := &stubService{name: "monitor-sweep"}
	hub := &stubService{name: "live-hub"}
	http := &stubService{name: "http-server"}
	tree.AddEngineService(sweep)
	tree.AddMessagingService(hub)
	tree.AddAPIService(http)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	for _, s := range []*stubService{sweep, hub, http} {
		waitStarts(t, s, 1)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
	if report, _ := tree.UnstoppedServiceReport(); len(report) != 0 {
		t.Errorf("unstopped services: %v", report)
	}
}

func TestSupervisorTree_RestartsFailedService(t *testing.T) {
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	flaky := &stubService{name: "router", failures: 2}
	steady := &stubService{name: "http-server"}
	tree.AddMessagingService(flaky)
	tree.AddAPIService(steady)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	waitStarts(t, flaky, 3)
	if n := steady.starts.Load(); n != 1 {
		t.Errorf("failure in messaging layer restarted api layer: %d starts", n)
	}
	cancel()
	<-errCh
}
