package auditlog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kastheco/mountie/log"
	_ "modernc.org/sqlite" // register sqlite driver
)

// Timestamps are stored as unix nanoseconds so ordering and range filters
// compare integers.
const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          INTEGER PRIMARY KEY,
	kind        TEXT    NOT NULL,
	ts          INTEGER NOT NULL,
	device      TEXT    NOT NULL DEFAULT '',
	label       TEXT    NOT NULL DEFAULT '',
	outcome     TEXT    NOT NULL DEFAULT '',
	mount_point TEXT    NOT NULL DEFAULT '',
	request_id  TEXT    NOT NULL DEFAULT '',
	username    TEXT    NOT NULL DEFAULT '',
	message     TEXT    NOT NULL DEFAULT '',
	detail      TEXT    NOT NULL DEFAULT '',
	level       TEXT    NOT NULL DEFAULT 'info'
);

CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_events(ts DESC);
CREATE INDEX IF NOT EXISTS idx_audit_device ON audit_events(device, ts DESC);
CREATE INDEX IF NOT EXISTS idx_audit_request ON audit_events(request_id);
`

const insertEvent = `INSERT INTO audit_events
	(kind, ts, device, label, outcome, mount_point, request_id, username, message, detail, level)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectEvents = `SELECT
	id, kind, ts, device, label, outcome, mount_point, request_id, username, message, detail, level
	FROM audit_events`

const maxQueryLimit = 500

// SQLiteLogger is a Logger backed by a SQLite database.
type SQLiteLogger struct {
	db     *sql.DB
	insert *sql.Stmt
	// emitErrors rate-limits warnings about failed writes.
	emitErrors *log.Every
}

// NewSQLiteLogger opens (or creates) a SQLite database at dbPath and prepares
// the audit_events table. Use ":memory:" for an in-memory database.
func NewSQLiteLogger(dbPath string) (*SQLiteLogger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db for audit log: %w", err)
	}
	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run audit log schema: %w", err)
	}
	insert, err := db.Prepare(insertEvent)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare audit insert: %w", err)
	}
	return &SQLiteLogger{db: db, insert: insert, emitErrors: log.NewEvery(time.Minute)}, nil
}

// Emit stores e. A zero Timestamp is set to now and an empty Level to info.
// Failures are logged, never returned: auditing must not stop an operation.
func (l *SQLiteLogger) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Level == "" {
		e.Level = "info"
	}
	_, err := l.insert.Exec(string(e.Kind), e.Timestamp.UnixNano(), e.Device, e.Label, e.Outcome,
		e.MountPoint, e.RequestID, e.User, e.Message, e.Detail, e.Level)
	if err != nil && l.emitErrors.ShouldLog() {
		log.WarningLog.Printf("write audit event %s: %v", e.Kind, err)
	}
}

// where renders the filter as a WHERE clause and its arguments.
func (f QueryFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, vals ...any) {
		conds = append(conds, cond)
		args = append(args, vals...)
	}
	if f.Device != "" {
		add("device = ?", f.Device)
	}
	if f.RequestID != "" {
		add("request_id = ?", f.RequestID)
	}
	if len(f.Kinds) > 0 {
		kinds := make([]any, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		add("kind IN (?"+strings.Repeat(", ?", len(kinds)-1)+")", kinds...)
	}
	if !f.After.IsZero() {
		add("ts > ?", f.After.UnixNano())
	}
	if !f.Before.IsZero() {
		add("ts < ?", f.Before.UnixNano())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Query returns events matching the filter, newest first. Limit defaults to
// and is capped at 500.
func (l *SQLiteLogger) Query(f QueryFilter) ([]Event, error) {
	limit := f.Limit
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	where, args := f.where()
	q := selectEvents + where + " ORDER BY ts DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e  Event
			ts int64
		)
		err := rows.Scan(&e.ID, (*string)(&e.Kind), &ts, &e.Device, &e.Label, &e.Outcome,
			&e.MountPoint, &e.RequestID, &e.User, &e.Message, &e.Detail, &e.Level)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// Close releases the database connection.
func (l *SQLiteLogger) Close() error {
	_ = l.insert.Close()
	return l.db.Close()
}
