// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package websocket

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/parkwatch/internal/models"
)

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", hub.SubscriberCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClient_ReceivesBroadcastAndPong(t *testing.T) {
	hub := startHub(t)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = NewClient(hub, conn).Start()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForCount(t, hub, 1)

	hub.BroadcastAlert(models.AlertEvent{Kind: models.AlertPaidExpired, SpotID: "B-7", Message: "expired"})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var got struct {
		Type string            `json:"type"`
		Data models.AlertEvent `json:"data"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != MessageTypeAlert || got.Data.SpotID != "B-7" {
		t.Errorf("got %+v", got)
	}

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var pong Message
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Type != MessageTypePong {
		t.Errorf("reply type = %q, want pong", pong.Type)
	}

	_ = conn.Close()
	waitForCount(t, hub, 0)
}

func TestClient_StartFailsWhenHubStopped(t *testing.T) {
	hub := NewHub()
	errCh := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errCh <- err
			return
		}
		errCh <- NewClient(hub, conn).Start()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := <-errCh; !errors.Is(err, ErrHubStopped) {
		t.Fatalf("Start = %v, want ErrHubStopped", err)
	}
}

func TestStreamSSE(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = StreamSSE(r.Context(), w, hub)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	waitForCount(t, hub, 1)

	hub.BroadcastSessionUpdate(models.SessionUpdateEvent{SessionID: "s-9", SpotID: "C-3", Status: models.StatusActivePaid})

	lines := make(chan string, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	var event, data string
	for event == "" || data == "" {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream ended early")
			}
			if v, found := strings.CutPrefix(line, "event: "); found {
				event = v
			}
			if v, found := strings.CutPrefix(line, "data: "); found {
				data = v
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no event received")
		}
	}

	if event != MessageTypeSessionUpdate {
		t.Errorf("event = %q", event)
	}
	var payload struct {
		Type string                    `json:"type"`
		Data models.SessionUpdateEvent `json:"data"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if payload.Data.SessionID != "s-9" || payload.Data.Status != models.StatusActivePaid {
		t.Errorf("payload = %+v", payload)
	}

	cancel()
	waitForCount(t, hub, 0)
}

type nonFlusher struct{ http.ResponseWriter }

func TestStreamSSE_RequiresFlusher(t *testing.T) {
	hub := startHub(t)
	err := StreamSSE(context.Background(), nonFlusher{httptest.NewRecorder()}, hub)
	if !errors.Is(err, ErrStreamingUnsupported) {
		t.Fatalf("err = %v, want ErrStreamingUnsupported", err)
	}
	if hub.SubscriberCount() != 0 {
		t.Error("no subscriber should be registered")
	}
}
