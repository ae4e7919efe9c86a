// Package eventindex materializes the CSV ledger into SQLite so readers can
// filter and page through events without touching the ledger file. The index
// is a derived copy: it is rebuilt from the ledger on demand and never written
// back.
package eventindex

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"msgtrack/pkg/ledger"

	_ "modernc.org/sqlite" // SQLite driver
)

// schemaDDL creates the events table. seq preserves ledger row order.
const schemaDDL = `CREATE TABLE IF NOT EXISTS events (
	seq              INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp        TEXT NOT NULL,
	subject_id       TEXT NOT NULL,
	kind             TEXT NOT NULL,
	content          TEXT NOT NULL,
	correlation_id   TEXT NOT NULL,
	status           TEXT NOT NULL,
	error_detail     TEXT,
	elapsed_seconds  REAL,
	participant_kind TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_correlation ON events(correlation_id);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);`

// QueryOpts specifies filter criteria for querying events.
type QueryOpts struct {
	// CorrelationID restricts results to one run.
	CorrelationID string

	// Kind restricts results to one event kind.
	Kind ledger.Kind

	// Limit keeps only the last N matching rows (0 = no limit).
	Limit int
}

// Index is a SQLite copy of the ledger.
type Index struct {
	db *sql.DB
}

// Open opens or creates the index database at path with WAL and a busy
// timeout, and ensures the schema exists.
func Open(ctx context.Context, path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", schemaDDL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init %s: %w", path, err)
		}
	}

	return &Index{db: db}, nil
}

// Close releases the database connection.
// Safe to call multiple times.
func (x *Index) Close() error {
	if x.db != nil {
		return x.db.Close()
	}
	return nil
}

// Materialize replaces the index contents with events, in order, inside a
// single transaction. It returns the number of rows written.
func (x *Index) Materialize(ctx context.Context, events []ledger.Event) (int, error) {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM events"); err != nil {
		return 0, fmt.Errorf("clear events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = 'events'"); err != nil {
		return 0, fmt.Errorf("reset sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events
		(timestamp, subject_id, kind, content, correlation_id, status, error_detail, elapsed_seconds, participant_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		e := &events[i]
		var elapsed sql.NullFloat64
		if e.ElapsedSeconds != nil {
			elapsed = sql.NullFloat64{Float64: *e.ElapsedSeconds, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			e.Timestamp.Format(ledger.TimeLayout),
			e.SubjectID,
			string(e.Kind),
			e.Content,
			e.CorrelationID,
			string(e.Status),
			nullString(e.ErrorDetail),
			elapsed,
			nullString(e.ParticipantKind),
		)
		if err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(events), nil
}

// Query returns matching events in ledger order.
// Returns an empty slice if no events match.
func (x *Index) Query(ctx context.Context, opts QueryOpts) ([]ledger.Event, error) {
	query, args := buildQuery(opts)

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ledger.Event{}
	for rows.Next() {
		var (
			e                        ledger.Event
			ts, kind, status         string
			errorDetail, participant sql.NullString
			elapsed                  sql.NullFloat64
		)
		err := rows.Scan(&ts, &e.SubjectID, &kind, &e.Content, &e.CorrelationID, &status,
			&errorDetail, &elapsed, &participant)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		e.Timestamp, err = time.ParseInLocation(ledger.TimeLayout, ts, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
		e.Kind = ledger.Kind(kind)
		e.Status = ledger.Status(status)
		e.ErrorDetail = errorDetail.String
		e.ParticipantKind = participant.String
		if elapsed.Valid {
			e.ElapsedSeconds = ledger.Seconds(elapsed.Float64)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// buildQuery constructs the SQL query and arguments from QueryOpts.
func buildQuery(opts QueryOpts) (string, []any) {
	var conditions []string
	var args []any

	query := `SELECT seq, timestamp, subject_id, kind, content, correlation_id, status,
		error_detail, elapsed_seconds, participant_kind FROM events WHERE 1=1`

	if opts.CorrelationID != "" {
		conditions = append(conditions, "correlation_id = ?")
		args = append(args, opts.CorrelationID)
	}

	if opts.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(opts.Kind))
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	// Newest first so LIMIT keeps the tail, then back to ledger order.
	query += " ORDER BY seq DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	return `SELECT timestamp, subject_id, kind, content, correlation_id, status,
		error_detail, elapsed_seconds, participant_kind FROM (` + query + `) ORDER BY seq ASC`, args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
