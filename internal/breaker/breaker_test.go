// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/parkwatch/internal/metrics"
)

func TestBreaker_OpensAfterFailureRatio(t *testing.T) {
	b := New("test-open", Settings{MinRequests: 4, FailureRatio: 0.5, Timeout: time.Hour})
	boom := errors.New("boom")

	for i := 0; i < 4; i++ {
		i := i
		_ = b.Do(func() error {
			if i%2 == 0 {
				return boom
			}
			return nil
		})
	}
	if b.State() != gobreaker.StateClosed {
		t.Fatalf("state = %v before trip check", b.State())
	}

	// The next failure is counted and trips the ratio.
	_ = b.Do(func() error { return boom })
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	ran := false
	err := b.Do(func() error { ran = true; return nil })
	if !IsRejected(err) {
		t.Errorf("err = %v, want rejection", err)
	}
	if ran {
		t.Error("fn must not run while open")
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("test-open")); got != 2 {
		t.Errorf("state gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues("test-open", "rejected")); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
}

func TestBreaker_PassesErrorsThrough(t *testing.T) {
	b := New("test-pass", Settings{})
	want := errors.New("downstream")
	if err := b.Do(func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestStateHelpers(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		value float64
		name  string
	}{
		{gobreaker.StateClosed, 0, "closed"},
		{gobreaker.StateHalfOpen, 1, "half-open"},
		{gobreaker.StateOpen, 2, "open"},
		{gobreaker.State(99), -1, "unknown"},
	}
	for _, tt := range tests {
		if got := StateValue(tt.state); got != tt.value {
			t.Errorf("StateValue(%v) = %v", tt.state, got)
		}
		if got := StateString(tt.state); got != tt.name {
			t.Errorf("StateString(%v) = %q", tt.state, got)
		}
	}
}
