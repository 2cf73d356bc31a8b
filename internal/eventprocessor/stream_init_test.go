// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package eventprocessor

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
)

type fakeJetStream struct {
	exists    bool
	lookupErr error
	created   []jetstream.StreamConfig
	updated   []jetstream.StreamConfig
}

func (f *fakeJetStream) Stream(_ context.Context, _ string) (jetstream.Stream, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if !f.exists {
		return nil, jetstream.ErrStreamNotFound
	}
	return nil, nil
}

func (f *fakeJetStream) CreateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.created = append(f.created, cfg)
	f.exists = true
	return nil, nil
}

func (f *fakeJetStream) UpdateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	f.updated = append(f.updated, cfg)
	return nil, nil
}

func TestEnsureStream(t *testing.T) {
	cfg := DefaultStreamConfig()
	js := &fakeJetStream{}
	init, err := NewStreamInitializer(js, &cfg)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := init.EnsureStream(context.Background()); err != nil {
		t.Fatalf("first EnsureStream: %v", err)
	}
	if len(js.created) != 1 || len(js.updated) != 0 {
		t.Fatalf("created=%d updated=%d, want 1/0", len(js.created), len(js.updated))
	}
	got := js.created[0]
	if got.Name != "PARKING" || got.Storage != jetstream.FileStorage || got.Duplicates != cfg.DuplicateWindow {
		t.Errorf("stream config = %+v", got)
	}

	if _, err := init.EnsureStream(context.Background()); err != nil {
		t.Fatalf("second EnsureStream: %v", err)
	}
	if len(js.created) != 1 || len(js.updated) != 1 {
		t.Fatalf("created=%d updated=%d, want 1/1", len(js.created), len(js.updated))
	}
	if !init.IsHealthy(context.Background()) {
		t.Error("IsHealthy = false after creation")
	}
}

func TestEnsureStream_LookupError(t *testing.T) {
	cfg := DefaultStreamConfig()
	boom := errors.New("timeout")
	init, _ := NewStreamInitializer(&fakeJetStream{lookupErr: boom}, &cfg)

	if _, err := init.EnsureStream(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want lookup error", err)
	}
	if init.IsHealthy(context.Background()) {
		t.Error("IsHealthy = true on lookup failure")
	}
}

func TestNewStreamInitializer_Validates(t *testing.T) {
	if _, err := NewStreamInitializer(nil, &StreamConfig{Name: "X", Subjects: []string{"x"}}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("nil js: err = %v", err)
	}
	if _, err := NewStreamInitializer(&fakeJetStream{}, &StreamConfig{Name: "X"}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("no subjects: err = %v", err)
	}
}
