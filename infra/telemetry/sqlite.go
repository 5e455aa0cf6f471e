package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	coretelemetry "github.com/kilianp07/batsim/core/telemetry"
)

// SQLiteStore persists records and diagnostics to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ coretelemetry.Store              = (*SQLiteStore)(nil)
	_ coretelemetry.DiagnosticRecorder = (*SQLiteStore)(nil)
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS battery_steps (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER,
        session TEXT,
        soc REAL,
        terminal_mv REAL,
        record TEXT
    );
    CREATE INDEX IF NOT EXISTS battery_steps_ts ON battery_steps (ts);
    CREATE TABLE IF NOT EXISTS battery_diagnostics (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER,
        session TEXT,
        kind TEXT,
        message TEXT
    );`

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) RecordStep(rec coretelemetry.Record) error {
	return s.Append(context.Background(), rec)
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec coretelemetry.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO battery_steps (ts, session, soc, terminal_mv, record) VALUES (?, ?, ?, ?, ?)`,
		rec.Timestamp.UnixNano(), rec.Session, rec.StateOfChargePct, rec.TerminalVoltageMV, string(b))
	return err
}

// RecordDiagnostic stores d in the diagnostics table.
func (s *SQLiteStore) RecordDiagnostic(d coretelemetry.Diagnostic) error {
	_, err := s.db.Exec(
		`INSERT INTO battery_diagnostics (ts, session, kind, message) VALUES (?, ?, ?, ?)`,
		d.Timestamp.UnixNano(), d.Session, string(d.Kind), d.Message)
	return err
}

// Query returns records matching q, oldest first.
func (s *SQLiteStore) Query(ctx context.Context, q coretelemetry.Query) ([]coretelemetry.Record, error) {
	var args []any
	where := ` WHERE 1=1`
	if !q.Start.IsZero() {
		where += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		where += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.Session != "" {
		where += ` AND session = ?`
		args = append(args, q.Session)
	}
	query := `SELECT record FROM battery_steps` + where + ` ORDER BY id`
	if q.Limit > 0 {
		query = `SELECT record FROM (SELECT id, record FROM battery_steps` + where +
			` ORDER BY id DESC LIMIT ?) ORDER BY id`
		args = append(args, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []coretelemetry.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r coretelemetry.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Diagnostics returns the stored diagnostics for session, or all of them
// when session is empty.
func (s *SQLiteStore) Diagnostics(ctx context.Context, session string) ([]coretelemetry.Diagnostic, error) {
	query := `SELECT ts, session, kind, message FROM battery_diagnostics`
	var args []any
	if session != "" {
		query += ` WHERE session = ?`
		args = append(args, session)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []coretelemetry.Diagnostic
	for rows.Next() {
		var (
			ts   int64
			d    coretelemetry.Diagnostic
			kind string
		)
		if err := rows.Scan(&ts, &d.Session, &kind, &d.Message); err != nil {
			return nil, err
		}
		d.Timestamp = time.Unix(0, ts).UTC()
		d.Kind = coretelemetry.DiagnosticKind(kind)
		res = append(res, d)
	}
	return res, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
