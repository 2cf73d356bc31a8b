// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/parkwatch/internal/config"
	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/models"
	"github.com/tomtom215/parkwatch/internal/simulation"
	"github.com/tomtom215/parkwatch/internal/store"
	"github.com/tomtom215/parkwatch/internal/websocket"
)

//nolint:gochecknoinits // quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

var testTopics = config.TopicsConfig{
	Presence:       "parking-events",
	Payment:        "payment-events",
	SessionUpdates: "session.updates",
	Alerts:         "alert.incident",
}

// fakeSimulator mirrors simulation.Simulator's error contract.
type fakeSimulator struct {
	mu   sync.Mutex
	runs map[models.SpotID]time.Duration
}

func newFakeSimulator() *fakeSimulator {
	return &fakeSimulator{runs: make(map[models.SpotID]time.Duration)}
}

func (f *fakeSimulator) Start(spot models.SpotID, d time.Duration) error {
	if d < simulation.MinDuration || d > simulation.MaxDuration {
		return simulation.ErrInvalidDuration
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.runs[spot]; ok {
		return simulation.ErrAlreadyRunning
	}
	f.runs[spot] = d
	return nil
}

func (f *fakeSimulator) Cancel(spot models.SpotID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.runs[spot]
	delete(f.runs, spot)
	return ok
}

func (f *fakeSimulator) Active() []models.SpotID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.SpotID, 0, len(f.runs))
	for s := range f.runs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixture struct {
	store  *store.MemoryStore
	pubsub *gochannel.GoChannel
	hub    *websocket.Hub
	sim    *fakeSimulator
	deps   Dependencies
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	t.Cleanup(func() { _ = ps.Close() })

	f := &fixture{
		store:  store.NewMemoryStore(),
		pubsub: ps,
		hub:    startHub(t),
		sim:    newFakeSimulator(),
	}
	f.deps = Dependencies{
		Store:     f.store,
		Publisher: ps,
		Transport: pingerFunc(func(context.Context) error { return nil }),
		Hub:       f.hub,
		Simulator: f.sim,
		Topics:    testTopics,
	}
	return f
}

func (f *fixture) router() http.Handler {
	return NewRouter(NewHandler(f.deps), MiddlewareConfig{CORSAllowedOrigins: []string{"*"}})
}

func (f *fixture) subscribe(t *testing.T, topic string) <-chan *message.Message {
	t.Helper()
	ch, err := f.pubsub.Subscribe(context.Background(), topic)
	if err != nil {
		t.Fatal(err)
	}
	return ch
}

func startHub(t *testing.T) *websocket.Hub {
	t.Helper()
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	deadline := time.Now().Add(time.Second)
	for !hub.Running() {
		if time.Now().After(deadline) {
			t.Fatal("hub did not start")
		}
		time.Sleep(time.Millisecond)
	}
	return hub
}

type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr io.Reader = http.NoBody
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if ct := rec.Header().Get("Content-Type"); strings.HasPrefix(ct, "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, env
}

func mustSave(t *testing.T, st store.Store, s *models.ParkingSession) {
	t.Helper()
	if err := st.Save(context.Background(), s); err != nil {
		t.Fatalf("Save(%s): %v", s.ID, err)
	}
}

func errCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func TestRouter_UnknownRoute(t *testing.T) {
	f := newFixture(t)
	rec, env := do(t, f.router(), http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound || errCode(env) != ErrCodeNotFound || env.Status != "error" {
		t.Errorf("status = %d, env = %+v", rec.Code, env)
	}
}

func TestRequestIDWithLogging(t *testing.T) {
	var seenRequest, seenCorrelation string
	h := RequestIDWithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenRequest = logging.RequestIDFromContext(r.Context())
		seenCorrelation = logging.CorrelationIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"generated", "", false},
		{"propagated", "req-123", true},
		{"oversized replaced", strings.Repeat("x", 200), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(HeaderRequestID)
			if got == "" || got != seenRequest {
				t.Fatalf("response id %q, context id %q", got, seenRequest)
			}
			if tt.keep != (got == tt.header) {
				t.Errorf("request id = %q", got)
			}
			if seenCorrelation == "" {
				t.Error("correlation id missing from context")
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t)
	r := NewRouter(NewHandler(f.deps), MiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec, _ := do(t, r, http.MethodGet, "/api/v1/sessions", "")
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}

	// Health is outside the limited group.
	if rec, _ := do(t, r, http.MethodGet, "/api/v1/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	mw := MiddlewareConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute, RateLimitDisabled: true}
	h := mw.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no list", nil, "https://evil.example", true},
		{"wildcard", []string{"*"}, "https://evil.example", true},
		{"listed", []string{"https://dash.example"}, "https://dash.example", true},
		{"not listed", []string{"https://dash.example"}, "https://evil.example", false},
		{"no origin header", []string{"https://dash.example"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", http.NoBody)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := NewUpgrader(tt.allowed).CheckOrigin(req); got != tt.want {
				t.Errorf("CheckOrigin = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRespondError_HidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, http.StatusInternalServerError, ErrCodeInternal, "Failed", errors.New("secret detail"))
	if strings.Contains(rec.Body.String(), "secret detail") {
		t.Errorf("cause leaked: %s", rec.Body.String())
	}
}
