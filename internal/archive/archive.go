// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

// Package archive keeps an append-only DuckDB history of every session
// update and alert the engine emits.
//
// The archive is a downstream consumer: it reads the session-update and
// alert topics on its own consumer and never feeds back into the engine.
// Rows are keyed by message UUID, so a redelivered message is a no-op.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/shopspring/decimal"

	"github.com/tomtom215/parkwatch/internal/config"
	"github.com/tomtom215/parkwatch/internal/logging"
	"github.com/tomtom215/parkwatch/internal/metrics"
	"github.com/tomtom215/parkwatch/internal/models"
)

const (
	tableSessionUpdates = "session_updates"
	tableAlerts         = "alerts"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS session_updates (
		message_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		spot_id TEXT NOT NULL,
		status TEXT NOT NULL,
		plate TEXT,
		amount DECIMAL(18,2),
		paid_until TIMESTAMP,
		event_time TIMESTAMP NOT NULL,
		archived_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_updates_session ON session_updates(session_id, event_time)`,
	`CREATE INDEX IF NOT EXISTS idx_session_updates_spot ON session_updates(spot_id)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		message_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		spot_id TEXT NOT NULL,
		message TEXT,
		event_time TIMESTAMP NOT NULL,
		archived_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_spot ON alerts(spot_id, event_time)`,
}

// Archive wraps the DuckDB connection.
type Archive struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the archive at cfg.Path. An empty path or
// ":memory:" keeps the archive in memory.
func Open(cfg *config.ArchiveConfig) (*Archive, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create archive directory %s: %w", dir, err)
			}
		}
	}

	// Extension autoloading can hang without network access.
	connStr := path + "?access_mode=read_write&autoinstall_known_extensions=false&autoload_known_extensions=false"
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	a := &Archive{conn: conn, now: time.Now}
	if err := a.initialize(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize archive: %w", err)
	}
	logging.Info().Str("path", path).Msg("History archive opened")
	return a, nil
}

func (a *Archive) initialize(ctx context.Context) error {
	for _, q := range schema {
		if _, err := a.conn.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// AppendSessionUpdate stores ev under messageID. Returns false when the
// message was already archived.
func (a *Archive) AppendSessionUpdate(ctx context.Context, messageID string, ev models.SessionUpdateEvent) (bool, error) {
	res, err := a.conn.ExecContext(ctx, `
		INSERT INTO session_updates
			(message_id, session_id, spot_id, status, plate, amount, paid_until, event_time, archived_at)
		VALUES (?, ?, ?, ?, ?, CAST(? AS DECIMAL(18,2)), ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		messageID, ev.SessionID, string(ev.SpotID), string(ev.Status),
		nullString(ev.Plate), decimalArg(ev.Amount), timeArg(ev.PaidUntil),
		ev.Timestamp.UTC(), a.now().UTC(),
	)
	return a.inserted(res, err, tableSessionUpdates)
}

// AppendAlert stores ev under messageID. Returns false when the message
// was already archived.
func (a *Archive) AppendAlert(ctx context.Context, messageID string, ev models.AlertEvent) (bool, error) {
	res, err := a.conn.ExecContext(ctx, `
		INSERT INTO alerts (message_id, kind, spot_id, message, event_time, archived_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		messageID, string(ev.Kind), string(ev.SpotID), ev.Message,
		ev.Timestamp.UTC(), a.now().UTC(),
	)
	return a.inserted(res, err, tableAlerts)
}

func (a *Archive) inserted(res sql.Result, err error, table string) (bool, error) {
	if err != nil {
		return false, fmt.Errorf("insert into %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert into %s: %w", table, err)
	}
	if n > 0 {
		metrics.ArchiveRows.WithLabelValues(table).Add(float64(n))
	}
	return n > 0, nil
}

// SessionHistory returns the archived updates of one session in event order.
func (a *Archive) SessionHistory(ctx context.Context, sessionID string) ([]models.SessionUpdateEvent, error) {
	rows, err := a.conn.QueryContext(ctx, `
		SELECT session_id, spot_id, status, plate, CAST(amount AS VARCHAR), paid_until, event_time
		FROM session_updates
		WHERE session_id = ?
		ORDER BY event_time, archived_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session history: %w", err)
	}
	defer rows.Close()

	var out []models.SessionUpdateEvent
	for rows.Next() {
		var (
			ev        models.SessionUpdateEvent
			spot      string
			status    string
			plate     sql.NullString
			amount    sql.NullString
			paidUntil sql.NullTime
		)
		if err := rows.Scan(&ev.SessionID, &spot, &status, &plate, &amount, &paidUntil, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan session history: %w", err)
		}
		ev.SpotID = models.SpotID(spot)
		ev.Status = models.SessionStatus(status)
		ev.Plate = plate.String
		if amount.Valid {
			d, err := decimal.NewFromString(amount.String)
			if err != nil {
				return nil, fmt.Errorf("parse archived amount %q: %w", amount.String, err)
			}
			ev.Amount = &d
		}
		if paidUntil.Valid {
			t := paidUntil.Time.UTC()
			ev.PaidUntil = &t
		}
		ev.Timestamp = ev.Timestamp.UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RecentAlerts returns up to limit alerts, newest first. An empty spot
// matches every spot.
func (a *Archive) RecentAlerts(ctx context.Context, spot models.SpotID, limit int) ([]models.AlertEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.conn.QueryContext(ctx, `
		SELECT kind, spot_id, message, event_time
		FROM alerts
		WHERE ? = '' OR spot_id = ?
		ORDER BY event_time DESC
		LIMIT ?`, string(spot), string(spot), limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []models.AlertEvent
	for rows.Next() {
		var (
			ev   models.AlertEvent
			kind string
			s    string
			msg  sql.NullString
		)
		if err := rows.Scan(&kind, &s, &msg, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		ev.Kind = models.AlertKind(kind)
		ev.SpotID = models.SpotID(s)
		ev.Message = msg.String
		ev.Timestamp = ev.Timestamp.UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Ping checks the connection.
func (a *Archive) Ping(ctx context.Context) error {
	return a.conn.PingContext(ctx)
}

// Close closes the connection.
func (a *Archive) Close() error {
	return a.conn.Close()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
