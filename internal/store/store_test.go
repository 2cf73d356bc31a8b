// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tomtom215/parkwatch/internal/models"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// backends runs fn once per Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore()
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
	t.Run("badger", func(t *testing.T) {
		s, err := OpenBadger(BadgerConfig{InMemory: true})
		if err != nil {
			t.Fatalf("OpenBadger: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func newSession(id string, spot models.SpotID, start time.Time) *models.ParkingSession {
	return &models.ParkingSession{
		ID:           id,
		SpotID:       spot,
		StartTime:    start,
		Status:       models.StatusActiveUnpaid,
		LastActivity: start,
		UnpaidSince:  start,
	}
}

func terminate(s *models.ParkingSession, at time.Time) *models.ParkingSession {
	c := s.Clone()
	c.EndTime = &at
	c.Status = models.StatusTerminated
	return c
}

func TestStore_SaveAndLookup(t *testing.T) {
	backends(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		amount := decimal.RequireFromString("0.50")
		s := newSession("s1", "A-1", t0)
		s.Amount = &amount

		if err := st.Save(ctx, s); err != nil {
			t.Fatalf("Save: %v", err)
		}

		got, err := st.Active(ctx, "A-1")
		if err != nil {
			t.Fatalf("Active: %v", err)
		}
		if got.ID != "s1" || !got.StartTime.Equal(t0) {
			t.Errorf("Active = %+v", got)
		}
		if got.Amount == nil || !got.Amount.Equal(amount) {
			t.Errorf("Amount = %v, want 0.50", got.Amount)
		}

		byID, err := st.Get(ctx, "s1")
		if err != nil || byID.SpotID != "A-1" {
			t.Fatalf("Get = %+v, %v", byID, err)
		}

		if _, err := st.Active(ctx, "B-2"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Active(B-2) err = %v, want ErrNotFound", err)
		}
		if _, err := st.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(nope) err = %v, want ErrNotFound", err)
		}
	})
}

func TestStore_ReturnsCopies(t *testing.T) {
	backends(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		s := newSession("s1", "A-1", t0)
		if err := st.Save(ctx, s); err != nil {
			t.Fatal(err)
		}
		s.Status = models.StatusActivePaid

		got, _ := st.Active(ctx, "A-1")
		if got.Status != models.StatusActiveUnpaid {
			t.Errorf("caller mutation leaked into store: %s", got.Status)
		}
	})
}

func TestStore_OneActivePerSpot(t *testing.T) {
	backends(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		if err := st.Save(ctx, newSession("s1", "A-1", t0)); err != nil {
			t.Fatal(err)
		}
		err := st.Save(ctx, newSession("s2", "A-1", t0.Add(time.Minute)))
		if !errors.Is(err, ErrActiveSessionExists) {
			t.Fatalf("second active save err = %v, want ErrActiveSessionExists", err)
		}
		// A different spot is unaffected.
		if err := st.Save(ctx, newSession("s3", "B-2", t0)); err != nil {
			t.Fatalf("other spot: %v", err)
		}
	})
}

func TestStore_TerminationFreesSpot(t *testing.T) {
	backends(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		s1 := newSession("s1", "A-1", t0)
		if err := st.Save(ctx, s1); err != nil {
			t.Fatal(err)
		}
		if err := st.Save(ctx, terminate(s1, t0.Add(time.Hour))); err != nil {
			t.Fatalf("terminate: %v", err)
		}
		if _, err := st.Active(ctx, "A-1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Active after termination err = %v", err)
		}
		if err := st.Save(ctx, newSession("s2", "A-1", t0.Add(2*time.Hour))); err != nil {
			t.Fatalf("new session after termination: %v", err)
		}

		history, err := st.List(ctx, Filter{SpotID: "A-1"})
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 2 || history[0].ID != "s1" || history[1].ID != "s2" {
			t.Fatalf("history = %v", ids(history))
		}
	})
}

func TestStore_Immutability(t *testing.T) {
	backends(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		s := newSession("s1", "A-1", t0)
		if err := st.Save(ctx, s); err != nil {
			t.Fatal(err)
		}

		moved := s.Clone()
		moved.StartTime = t0.Add(time.Second)
		if err := st.Save(ctx, moved); !errors.Is(err, ErrImmutableField) {
			t.Errorf("start change err = %v, want ErrImmutableField", err)
		}

		respot := s.Clone()
		respot.SpotID = "B-2"
		if err := st.Save(ctx, respot); !errors.Is(err, ErrImmutableField) {
			t.Errorf("spot change err = %v, want ErrImmutableField", err)
		}

		closed := terminate(s, t0.Add(time.Hour))
		if err := st.Save(ctx, closed); err != nil {
			t.Fatal(err)
		}
		again := terminate(s, t0.Add(2*time.Hour))
		if err := st.Save(ctx, again); !errors.Is(err, ErrSessionClosed) {
			t.Errorf("re-terminate err = %v, want ErrSessionClosed", err)
		}
		got, _ := st.Get(ctx, "s1")
		if !got.EndTime.Equal(t0.Add(time.Hour)) {
			t.Errorf("EndTime = %v, want first termination", got.EndTime)
		}
	})
}

func TestStore_InvalidSession(t *testing.T) {
	backends(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		if err := st.Save(ctx, nil); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("nil session err = %v", err)
		}
		if err := st.Save(ctx, &models.ParkingSession{SpotID: "A-1"}); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("missing id err = %v", err)
		}
		if err := st.Save(ctx, &models.ParkingSession{ID: "x"}); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("missing spot err = %v", err)
		}
	})
}

func TestStore_ListFilters(t *testing.T) {
	backends(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		a1 := newSession("a1", "A", t0)
		mustSave(t, st, a1)
		mustSave(t, st, terminate(a1, t0.Add(time.Minute)))
		mustSave(t, st, newSession("a2", "A", t0.Add(2*time.Minute)))
		mustSave(t, st, newSession("b1", "B", t0.Add(time.Minute)))

		tests := []struct {
			name   string
			filter Filter
			want   []string
		}{
			{"all", Filter{}, []string{"a1", "b1", "a2"}},
			{"active", Filter{ActiveOnly: true}, []string{"b1", "a2"}},
			{"spot", Filter{SpotID: "A"}, []string{"a1", "a2"}},
			{"spot active", Filter{SpotID: "A", ActiveOnly: true}, []string{"a2"}},
			{"spot without sessions", Filter{SpotID: "Z", ActiveOnly: true}, nil},
			{"limit", Filter{Limit: 2}, []string{"a1", "b1"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := st.List(ctx, tt.filter)
				if err != nil {
					t.Fatal(err)
				}
				if fmt.Sprint(ids(got)) != fmt.Sprint(tt.want) {
					t.Errorf("List = %v, want %v", ids(got), tt.want)
				}
			})
		}
	})
}

func TestStore_ConcurrentCreateSameSpot(t *testing.T) {
	backends(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		var (
			wg      sync.WaitGroup
			success atomic.Int32
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := st.Save(ctx, newSession(fmt.Sprintf("s%d", i), "A-1", t0)); err == nil {
					success.Add(1)
				}
			}(i)
		}
		wg.Wait()
		if success.Load() != 1 {
			t.Fatalf("%d concurrent creates succeeded, want 1", success.Load())
		}
		active, _ := st.List(ctx, Filter{SpotID: "A-1", ActiveOnly: true})
		if len(active) != 1 {
			t.Fatalf("active sessions = %d, want 1", len(active))
		}
	})
}

func TestStore_Closed(t *testing.T) {
	backends(t, func(t *testing.T, st Store) {
		if err := st.Close(); err != nil {
			t.Fatal(err)
		}
		if err := st.Ping(context.Background()); !errors.Is(err, ErrClosed) {
			t.Errorf("Ping after close err = %v", err)
		}
		if _, err := st.Active(context.Background(), "A"); !errors.Is(err, ErrClosed) {
			t.Errorf("Active after close err = %v", err)
		}
	})
}

func TestStore_CanceledContext(t *testing.T) {
	backends(t, func(t *testing.T, st Store) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := st.Save(ctx, newSession("s1", "A", t0)); !errors.Is(err, context.Canceled) {
			t.Errorf("Save err = %v, want context.Canceled", err)
		}
	})
}

func TestBadgerStore_Reopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")
	ctx := context.Background()

	st, err := OpenBadger(BadgerConfig{Path: dir, SyncWrites: true})
	if err != nil {
		t.Fatal(err)
	}
	mustSave(t, st, newSession("s1", "A-1", t0))
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st, err = OpenBadger(BadgerConfig{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	got, err := st.Active(ctx, "A-1")
	if err != nil {
		t.Fatalf("Active after reopen: %v", err)
	}
	if got.ID != "s1" || !got.StartTime.Equal(t0) {
		t.Errorf("reopened session = %+v", got)
	}
	if err := st.RunGC(); err != nil {
		t.Errorf("RunGC: %v", err)
	}
}

func mustSave(t *testing.T, st Store, s *models.ParkingSession) {
	t.Helper()
	if err := st.Save(context.Background(), s); err != nil {
		t.Fatalf("Save(%s): %v", s.ID, err)
	}
}

func ids(sessions []*models.ParkingSession) []string {
	var out []string
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}
