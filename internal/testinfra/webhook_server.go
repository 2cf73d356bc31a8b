// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

//go:build integration

package testinfra

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// WebhookCapture is one recorded request.
type WebhookCapture struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// WebhookReceiver records every request and answers with Status.
type WebhookReceiver struct {
	server   *httptest.Server
	mu       sync.Mutex
	captures []WebhookCapture
	status   int
}

// NewWebhookReceiver starts a receiver answering 200. It closes with t.
func NewWebhookReceiver(t *testing.T) *WebhookReceiver {
	t.Helper()
	w := &WebhookReceiver{status: http.StatusOK}
	w.server = httptest.NewServer(http.HandlerFunc(w.handle))
	t.Cleanup(w.server.Close)
	return w
}

func (w *WebhookReceiver) handle(rw http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()

	w.mu.Lock()
	w.captures = append(w.captures, WebhookCapture{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header.Clone(),
		Body:    body,
	})
	status := w.status
	w.mu.Unlock()

	rw.WriteHeader(status)
}

// URL returns the receiver's base URL.
func (w *WebhookReceiver) URL() string {
	return w.server.URL
}

// SetStatus changes the status code of later responses.
func (w *WebhookReceiver) SetStatus(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = code
}

// Captures returns a copy of the recorded requests.
func (w *WebhookReceiver) Captures() []WebhookCapture {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WebhookCapture, len(w.captures))
	copy(out, w.captures)
	return out
}

// WaitForCaptures waits until at least n requests arrived.
func (w *WebhookReceiver) WaitForCaptures(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		w.mu.Lock()
		got := len(w.captures)
		w.mu.Unlock()
		if got >= n {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}
