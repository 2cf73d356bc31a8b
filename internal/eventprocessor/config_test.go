// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package eventprocessor

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/parkwatch/internal/config"
)

func TestDurableName(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"parkwatch", "controller"}, "parkwatch-controller"},
		{[]string{"parkwatch-archive", "session.updates"}, "parkwatch-archive-session_updates"},
		{[]string{"", "notify", "alert.>"}, "notify-alert__"},
	}
	for _, tt := range tests {
		if got := DurableName(tt.parts...); got != tt.want {
			t.Errorf("DurableName(%q) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}

func TestStreamConfigFrom(t *testing.T) {
	nats := &config.NATSConfig{StreamName: "LOT7", StreamRetention: 24 * time.Hour}
	topics := &config.TopicsConfig{Presence: "p", Payment: "pay", SessionUpdates: "s.u", Alerts: "a.i"}

	sc := StreamConfigFrom(nats, topics)
	if sc.Name != "LOT7" || sc.MaxAge != 24*time.Hour {
		t.Errorf("sc = %+v", sc)
	}
	if want := []string{"p", "pay", "s.u", "a.i"}; !reflect.DeepEqual(sc.Subjects, want) {
		t.Errorf("Subjects = %v, want %v", sc.Subjects, want)
	}
}

func TestServerConfigFrom(t *testing.T) {
	sc, err := ServerConfigFrom(&config.NATSConfig{URL: "nats://0.0.0.0:4333", StoreDir: "/tmp/js"})
	if err != nil {
		t.Fatal(err)
	}
	if sc.Host != "0.0.0.0" || sc.Port != 4333 || sc.StoreDir != "/tmp/js" {
		t.Errorf("sc = %+v", sc)
	}

	if _, err := ServerConfigFrom(&config.NATSConfig{URL: "nats://localhost"}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing port: err = %v", err)
	}
}

func TestSubscriberConfigFor(t *testing.T) {
	cfg := &config.NATSConfig{
		URL:              "nats://127.0.0.1:4222",
		StreamName:       "PARKING",
		DurablePrefix:    "parkwatch",
		SubscribersCount: 2,
		AckWait:          5 * time.Second,
		MaxDeliver:       3,
	}
	sc := SubscriberConfigFor(cfg, "archive")
	if sc.DurableName != "parkwatch-archive" || sc.StreamName != "PARKING" {
		t.Errorf("sc = %+v", sc)
	}
	if sc.SubscribersCount != 2 || sc.AckWaitTimeout != 5*time.Second || sc.MaxDeliver != 3 {
		t.Errorf("overrides not applied: %+v", sc)
	}
}

func TestRouterConfigFrom(t *testing.T) {
	rc := RouterConfigFrom(&config.NATSConfig{RouterThrottlePerSecond: 50, RouterDeduplicationEnabled: true})
	if rc.ThrottlePerSecond != 50 || !rc.DeduplicationEnabled {
		t.Errorf("rc = %+v", rc)
	}
	if rc.CloseTimeout != 30*time.Second || rc.DeduplicationTTL != 5*time.Minute {
		t.Errorf("defaults lost: %+v", rc)
	}
}
