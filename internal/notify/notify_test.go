// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/parkwatch/internal/breaker"
	"github.com/tomtom215/parkwatch/internal/config"
	"github.com/tomtom215/parkwatch/internal/eventprocessor"
	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/models"
)

//nolint:gochecknoinits // quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

var testAlert = models.AlertEvent{
	Kind:      models.AlertUnpaidOverstay,
	SpotID:    "A-1",
	Message:   "Vehicle on spot A-1 has not paid",
	Timestamp: time.Date(2026, 3, 1, 8, 5, 0, 0, time.UTC),
}

func TestWebhookNotifier_PostsPayload(t *testing.T) {
	var got WebhookPayload
	var auth, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer x"}})
	if err := n.Notify(context.Background(), testAlert); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if got.Alert.SpotID != "A-1" || got.Alert.Kind != models.AlertUnpaidOverstay {
		t.Errorf("alert = %+v", got.Alert)
	}
	if got.Source != "parkwatch" || got.EventType != "parking_alert" {
		t.Errorf("envelope = %+v", got)
	}
	if auth != "Bearer x" || contentType != "application/json" {
		t.Errorf("headers: auth=%q content-type=%q", auth, contentType)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL})
	if err := n.Notify(context.Background(), testAlert); !errors.Is(err, ErrWebhookStatus) {
		t.Fatalf("err = %v, want ErrWebhookStatus", err)
	}
}

func TestWebhookNotifier_BreakerStopsCalls(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{
		URL:           srv.URL,
		RatePerMinute: 6000,
		Breaker:       breaker.Settings{MinRequests: 3, FailureRatio: 0.5, Timeout: time.Hour},
	})

	var rejected int
	for i := 0; i < 6; i++ {
		if err := n.Notify(context.Background(), testAlert); breaker.IsRejected(err) {
			rejected++
		}
	}
	if hits.Load() != 3 {
		t.Errorf("endpoint hits = %d, want 3", hits.Load())
	}
	if rejected != 3 {
		t.Errorf("rejected = %d, want 3", rejected)
	}
}

func TestWebhookNotifier_RateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL, RatePerMinute: 1})
	if err := n.Notify(context.Background(), testAlert); err != nil {
		t.Fatalf("first Notify: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := n.Notify(ctx, testAlert); err == nil {
		t.Fatal("second Notify within the same minute should wait and give up")
	}
}

type fakeNotifier struct {
	name  string
	err   error
	calls []models.AlertEvent
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Notify(_ context.Context, a models.AlertEvent) error {
	f.calls = append(f.calls, a)
	return f.err
}

func TestDispatcher_Handle(t *testing.T) {
	valid, err := eventprocessor.Encode(testAlert)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		payload   []byte
		wantCalls int
	}{
		{"valid alert reaches every channel", valid, 1},
		{"malformed payload is dropped", []byte(`{"kind":`), 0},
		{"unknown kind is dropped", []byte(`{"kind":"Towed","spot_id":"A-1"}`), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failing := &fakeNotifier{name: "sms", err: errors.New("gateway down")}
			ok := &fakeNotifier{name: "push"}
			d := NewDispatcher(failing, ok)

			if err := d.Handle(message.NewMessage("m-1", tt.payload)); err != nil {
				t.Fatalf("Handle = %v, want nil", err)
			}
			if len(failing.calls) != tt.wantCalls || len(ok.calls) != tt.wantCalls {
				t.Errorf("calls = %d/%d, want %d", len(failing.calls), len(ok.calls), tt.wantCalls)
			}
		})
	}
}

func TestNewDispatcherFromConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.NotifyConfig
		want []string
	}{
		{"log only", config.NotifyConfig{Enabled: true}, []string{"push"}},
		{"with webhook", config.NotifyConfig{Enabled: true, WebhookURL: "http://example.invalid/hook"}, []string{"push", "webhook"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewDispatcherFromConfig(&tt.cfg).Channels()
			if len(got) != len(tt.want) {
				t.Fatalf("channels = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("channels = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
