// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/models"
)

// Key layout:
//
//	session/<id>          -> JSON ParkingSession
//	active/<spot>         -> session id of the open session
//	spot/<spot>/<id>      -> empty, lists a spot's history
const (
	prefixSession = "session/"
	prefixActive  = "active/"
	prefixSpot    = "spot/"
)

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool
}

// BadgerStore persists sessions in BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens or creates a BadgerStore.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Compression = options.Snappy
	opts.MemTableSize = 16 << 20
	opts.ValueLogFileSize = 64 << 20
	opts.NumCompactors = 2

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Session store opened")

	return &BadgerStore{db: db}, nil
}

func sessionKey(id string) []byte {
	return []byte(prefixSession + id)
}

func activeKey(spot models.SpotID) []byte {
	return []byte(prefixActive + string(spot))
}

func spotKey(spot models.SpotID, id string) []byte {
	return []byte(prefixSpot + string(spot) + "/" + id)
}

func spotPrefix(spot models.SpotID) []byte {
	return []byte(prefixSpot + string(spot) + "/")
}

func (b *BadgerStore) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

func getSession(txn *badger.Txn, id string) (*models.ParkingSession, error) {
	item, err := txn.Get(sessionKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	var s models.ParkingSession
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &s)
	}); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func getActiveID(txn *badger.Txn, spot models.SpotID) (string, error) {
	item, err := txn.Get(activeKey(spot))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get active index for %s: %w", spot, err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", fmt.Errorf("read active index for %s: %w", spot, err)
	}
	return string(val), nil
}

func (b *BadgerStore) Active(ctx context.Context, spot models.SpotID) (*models.ParkingSession, error) {
	if err := b.checkOpen(ctx); err != nil {
		return nil, err
	}
	var out *models.ParkingSession
	err := b.db.View(func(txn *badger.Txn) error {
		id, err := getActiveID(txn, spot)
		if err != nil {
			return err
		}
		out, err = getSession(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BadgerStore) Get(ctx context.Context, id string) (*models.ParkingSession, error) {
	if err := b.checkOpen(ctx); err != nil {
		return nil, err
	}
	var out *models.ParkingSession
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = getSession(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BadgerStore) Save(ctx context.Context, s *models.ParkingSession) error {
	if err := b.checkOpen(ctx); err != nil {
		return err
	}
	if s == nil || s.ID == "" {
		return ErrInvalidSession
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		prev, err := getSession(txn, s.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := checkTransition(prev, s); err != nil {
			return err
		}

		holder, err := getActiveID(txn, s.SpotID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		if s.IsActive() {
			if holder != "" && holder != s.ID {
				return fmt.Errorf("%w: spot %s held by %s", ErrActiveSessionExists, s.SpotID, holder)
			}
			if err := txn.Set(activeKey(s.SpotID), []byte(s.ID)); err != nil {
				return fmt.Errorf("set active index: %w", err)
			}
		} else if holder == s.ID {
			if err := txn.Delete(activeKey(s.SpotID)); err != nil {
				return fmt.Errorf("clear active index: %w", err)
			}
		}

		if prev == nil {
			if err := txn.Set(spotKey(s.SpotID, s.ID), []byte{}); err != nil {
				return fmt.Errorf("set spot index: %w", err)
			}
		}
		if err := txn.Set(sessionKey(s.ID), data); err != nil {
			return fmt.Errorf("write session: %w", err)
		}
		return nil
	})
}

func (b *BadgerStore) List(ctx context.Context, f Filter) ([]*models.ParkingSession, error) {
	if err := b.checkOpen(ctx); err != nil {
		return nil, err
	}

	var out []*models.ParkingSession
	err := b.db.View(func(txn *badger.Txn) error {
		ids, err := b.candidateIDs(ctx, txn, f)
		if err != nil {
			return err
		}
		out = make([]*models.ParkingSession, 0, len(ids))
		for _, id := range ids {
			s, err := getSession(txn, id)
			if err != nil {
				return err
			}
			if f.matches(s) {
				out = append(out, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sortAndLimit(out, f.Limit), nil
}

// candidateIDs picks the narrowest index for f.
func (b *BadgerStore) candidateIDs(ctx context.Context, txn *badger.Txn, f Filter) ([]string, error) {
	switch {
	case f.SpotID != "" && f.ActiveOnly:
		id, err := getActiveID(txn, f.SpotID)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	case f.SpotID != "":
		prefix := spotPrefix(f.SpotID)
		return scanKeys(ctx, txn, prefix, func(key []byte, _ *badger.Item) (string, error) {
			return string(key[len(prefix):]), nil
		})
	case f.ActiveOnly:
		return scanKeys(ctx, txn, []byte(prefixActive), func(_ []byte, item *badger.Item) (string, error) {
			val, err := item.ValueCopy(nil)
			return string(val), err
		})
	default:
		return scanKeys(ctx, txn, []byte(prefixSession), func(key []byte, _ *badger.Item) (string, error) {
			return string(key[len(prefixSession):]), nil
		})
	}
}

func scanKeys(ctx context.Context, txn *badger.Txn, prefix []byte, extract func([]byte, *badger.Item) (string, error)) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Rewind(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := it.Item()
		id, err := extract(item.KeyCopy(nil), item)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", prefix, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (b *BadgerStore) Ping(ctx context.Context) error {
	if err := b.checkOpen(ctx); err != nil {
		return err
	}
	if b.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// RunGC reclaims value log space. Safe to call periodically.
func (b *BadgerStore) RunGC() error {
	err := b.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("Session store closed")
	return nil
}
