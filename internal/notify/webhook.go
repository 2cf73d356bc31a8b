// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/parkwatch/internal/breaker"
	"github.com/tomtom215/parkwatch/internal/models"
)

// WebhookBreakerName labels the webhook breaker in metrics.
const WebhookBreakerName = "alert-webhook"

// ErrWebhookStatus is wrapped when the endpoint answers with an error status.
var ErrWebhookStatus = errors.New("webhook returned error status")

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	URL           string
	Headers       map[string]string
	RatePerMinute int
	Timeout       time.Duration
	Breaker       breaker.Settings
}

// WebhookPayload is the JSON body POSTed per alert.
type WebhookPayload struct {
	Alert     models.AlertEvent `json:"alert"`
	EventType string            `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
}

// WebhookNotifier POSTs alerts to an HTTP endpoint.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client
	limiter *rate.Limiter
	cb      *breaker.Breaker
	now     func() time.Time
}

// NewWebhookNotifier creates a webhook notifier. RatePerMinute defaults to
// 60 and Timeout to 10s.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &WebhookNotifier{
		url:     cfg.URL,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute),
		cb:      breaker.New(WebhookBreakerName, cfg.Breaker),
		now:     time.Now,
	}
}

// Name returns the channel name.
func (n *WebhookNotifier) Name() string { return "webhook" }

// Notify waits for a rate-limit token, then POSTs the alert through the
// circuit breaker.
func (n *WebhookNotifier) Notify(ctx context.Context, alert models.AlertEvent) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}

	body, err := json.Marshal(WebhookPayload{
		Alert:     alert,
		EventType: "parking_alert",
		Timestamp: n.now().UTC(),
		Source:    "parkwatch",
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	return n.cb.Do(func() error {
		return n.post(ctx, body)
	})
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %d", ErrWebhookStatus, resp.StatusCode)
	}
	return nil
}
