// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package archive

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/shopspring/decimal"

	"github.com/tomtom215/parkwatch/internal/config"
	"github.com/tomtom215/parkwatch/internal/eventprocessor"
	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/models"
)

//nolint:gochecknoinits // quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(&config.ArchiveConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "history", "archive.duckdb")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestSessionHistory_RoundTrip(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	amount := decimal.RequireFromString("0.50")
	paidUntil := t0.Add(5 * time.Minute)
	updates := []models.SessionUpdateEvent{
		{SessionID: "s-1", SpotID: "A-1", Status: models.StatusActiveUnpaid, Timestamp: t0.Add(30 * time.Second)},
		{SessionID: "s-1", SpotID: "A-1", Status: models.StatusActivePaid, Plate: "AB-123-CD", Amount: &amount, PaidUntil: &paidUntil, Timestamp: t0.Add(time.Minute)},
		{SessionID: "s-2", SpotID: "A-2", Status: models.StatusActiveUnpaid, Timestamp: t0},
	}
	for i, u := range updates {
		if ok, err := a.AppendSessionUpdate(ctx, "m-"+string(rune('a'+i)), u); err != nil || !ok {
			t.Fatalf("append %d: ok=%v err=%v", i, ok, err)
		}
	}

	got, err := a.SessionHistory(ctx, "s-1")
	if err != nil {
		t.Fatalf("SessionHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("history len = %d, want 2", len(got))
	}
	if got[0].Status != models.StatusActiveUnpaid || got[0].Amount != nil || got[0].Plate != "" {
		t.Errorf("first = %+v", got[0])
	}
	paid := got[1]
	if paid.Status != models.StatusActivePaid || paid.Plate != "AB-123-CD" {
		t.Errorf("second = %+v", paid)
	}
	if paid.Amount == nil || !paid.Amount.Equal(amount) {
		t.Errorf("amount = %v, want 0.50", paid.Amount)
	}
	if paid.PaidUntil == nil || !paid.PaidUntil.Equal(paidUntil) {
		t.Errorf("paid_until = %v, want %v", paid.PaidUntil, paidUntil)
	}
}

func TestAppend_RedeliveryIsNoOp(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	alert := models.NewPaidExpiredAlert("B-1", t0.Add(-time.Minute), t0)

	first, err := a.AppendAlert(ctx, "m-1", alert)
	if err != nil || !first {
		t.Fatalf("first append: ok=%v err=%v", first, err)
	}
	again, err := a.AppendAlert(ctx, "m-1", alert)
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if again {
		t.Error("redelivered message should not insert a row")
	}

	alerts, err := a.RecentAlerts(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Errorf("alerts = %d, want 1", len(alerts))
	}
}

func TestRecentAlerts_FilterAndOrder(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	_, _ = a.AppendAlert(ctx, "m-1", models.NewUnpaidOverstayAlert("A-1", 5*time.Minute, t0))
	_, _ = a.AppendAlert(ctx, "m-2", models.NewPaidExpiredAlert("A-1", t0, t0.Add(time.Hour)))
	_, _ = a.AppendAlert(ctx, "m-3", models.NewPaidExpiredAlert("C-9", t0, t0.Add(2*time.Hour)))

	tests := []struct {
		name     string
		spot     models.SpotID
		limit    int
		wantLen  int
		wantKind models.AlertKind
	}{
		{"all spots newest first", "", 10, 3, models.AlertPaidExpired},
		{"one spot", "A-1", 10, 2, models.AlertPaidExpired},
		{"limit", "A-1", 1, 1, models.AlertPaidExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.RecentAlerts(ctx, tt.spot, tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tt.wantLen)
			}
			if got[0].Kind != tt.wantKind {
				t.Errorf("first kind = %q", got[0].Kind)
			}
			for i := 1; i < len(got); i++ {
				if got[i].Timestamp.After(got[i-1].Timestamp) {
					t.Error("alerts not newest first")
				}
			}
		})
	}
}

func TestHandlers(t *testing.T) {
	a := openTestArchive(t)

	payload, err := eventprocessor.Encode(models.SessionUpdateEvent{
		SessionID: "s-5", SpotID: "D-4", Status: models.StatusTerminated, Timestamp: t0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.HandleSessionUpdate(message.NewMessage("m-10", payload)); err != nil {
		t.Fatalf("HandleSessionUpdate: %v", err)
	}
	if err := a.HandleSessionUpdate(message.NewMessage("m-11", []byte("not json"))); err != nil {
		t.Fatalf("undecodable update should be acked, got %v", err)
	}
	if err := a.HandleAlert(message.NewMessage("m-12", []byte(`{}`))); err != nil {
		t.Fatalf("invalid alert should be acked, got %v", err)
	}

	got, err := a.SessionHistory(context.Background(), "s-5")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Status != models.StatusTerminated {
		t.Errorf("history = %+v", got)
	}
}

func TestHandleSessionUpdate_WriteFailureIsRetried(t *testing.T) {
	a := openTestArchive(t)
	_ = a.Close()

	payload, _ := eventprocessor.Encode(models.SessionUpdateEvent{
		SessionID: "s-6", SpotID: "D-5", Status: models.StatusActiveUnpaid, Timestamp: t0,
	})
	if err := a.HandleSessionUpdate(message.NewMessage("m-20", payload)); err == nil {
		t.Fatal("write on a closed archive should return an error for redelivery")
	}
}
