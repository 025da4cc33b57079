// Package ledger provides a WAL-mode SQLite-backed append log of dbgee's
// wrap/unwrap/run/hook-match events, so that `dbgee status` can report
// which executables are currently wrapped and which hook matches recently
// fired without re-probing the filesystem. Grounded on the reference
// agent's internal/queue/sqlite_queue.go: the WAL pragma, single-
// connection pool, schema-as-const-DDL, and atomic row-count cache are all
// kept, adapted here from an at-least-once delivery queue into a durable,
// read-mostly event log.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver with database/sql
)

// EventKind enumerates the event kinds dbgee appends to the ledger.
type EventKind string

const (
	EventWrap      EventKind = "wrap"
	EventUnwrap    EventKind = "unwrap"
	EventRun       EventKind = "run"
	EventHookMatch EventKind = "hook_match"
)

// Event is one row appended to the ledger.
type Event struct {
	ID        int64
	Kind      EventKind
	Target    string // the executable path the event concerns
	Debugger  string // debugger adapter name, empty if not applicable
	Detail    string // free-form detail (PID, port, matched source file, ...)
	Timestamp time.Time
}

// Ledger is a WAL-mode SQLite-backed append log. It is safe for concurrent
// use.
type Ledger struct {
	db    *sql.DB
	count atomic.Int64
}

const ddl = `
CREATE TABLE IF NOT EXISTS session_events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    kind       TEXT    NOT NULL,
    target     TEXT    NOT NULL,
    debugger   TEXT    NOT NULL DEFAULT '',
    detail     TEXT    NOT NULL DEFAULT '',
    ts         TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_events_target
    ON session_events (target, id);
`

// Open opens (or creates) the SQLite database at path, enables WAL journal
// mode, and applies the schema. If path is ":memory:", an in-memory
// database is used; this is suitable for tests but loses all data when
// closed.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %q: %w", path, err)
	}

	// SQLite allows only one writer at a time; a single connection avoids
	// "database is locked" errors from concurrent Append calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous = NORMAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: set synchronous = NORMAL: %w", err)
	}
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}

	l := &Ledger{db: db}

	var n int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM session_events`).Scan(&n); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: count rows: %w", err)
	}
	l.count.Store(n)

	return l, nil
}

// Append records evt. evt.Timestamp defaults to the current time if zero.
func (l *Ledger) Append(ctx context.Context, evt Event) error {
	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO session_events (kind, target, debugger, detail, ts)
		 VALUES (?, ?, ?, ?, ?)`,
		string(evt.Kind), evt.Target, evt.Debugger, evt.Detail, ts.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ledger: append %s event for %q: %w", evt.Kind, evt.Target, err)
	}
	l.count.Add(1)
	return nil
}

// WrappedTargets returns the set of targets whose most recent event is a
// wrap not yet followed by an unwrap, sorted by target path. This is what
// `dbgee status` reports as "currently wrapped".
func (l *Ledger) WrappedTargets(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT target FROM (
			SELECT target, kind,
			       ROW_NUMBER() OVER (PARTITION BY target ORDER BY id DESC) AS rn
			FROM session_events
			WHERE kind IN ('wrap', 'unwrap')
		)
		WHERE rn = 1 AND kind = 'wrap'
		ORDER BY target
	`)
	if err != nil {
		return nil, fmt.Errorf("ledger: query wrapped targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("ledger: scan wrapped target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// Recent returns up to n most recent events, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, kind, target, debugger, detail, ts
		 FROM session_events
		 ORDER BY id DESC
		 LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("ledger: query recent events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e     Event
			kind  string
			tsStr string
		)
		if err := rows.Scan(&e.ID, &kind, &e.Target, &e.Debugger, &e.Detail, &tsStr); err != nil {
			return nil, fmt.Errorf("ledger: scan event: %w", err)
		}
		e.Kind = EventKind(kind)
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, tsStr)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the total number of events ever appended. It reads an
// atomic counter and never blocks.
func (l *Ledger) Count() int {
	return int(l.count.Load())
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}
