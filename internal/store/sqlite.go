package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/payload"
	"github.com/roach88/hivelog/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
// 1 - Added index on events.correlation_id
const currentSchemaVersion = 1

// SQLiteStore keeps events in a SQLite database.
// Uses WAL mode for concurrent read access; SQLite's own locking makes
// appends atomic across processes. There is no rotation.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	compiler *querysql.Compiler
}

// OpenSQLite creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, ioError("open", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, ioError("open", path, err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, ioError("open", path, fmt.Errorf("apply pragmas: %w", err))
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, ioError("open", path, fmt.Errorf("apply schema: %w", err))
	}

	return &SQLiteStore{db: db, path: path, compiler: querysql.NewCompiler()}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Append inserts e. An event without a Seq is numbered after the current
// maximum; an event that already carries one (an export) keeps it.
// Re-inserting an existing id is a no-op, so exports are idempotent.
func (s *SQLiteStore) Append(ctx context.Context, e event.Event) (event.Event, error) {
	if s.db == nil {
		return event.Event{}, closedError("append")
	}
	e, err := event.Canonical(e)
	if err != nil {
		return event.Event{}, &Error{Code: CodeEncode, Op: "append", Err: err}
	}
	payloadJSON, err := payload.Marshal(e.Payload)
	if err != nil {
		return event.Event{}, &Error{Code: CodeEncode, Op: "append", Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, ioError("append", s.path, err)
	}
	defer tx.Rollback()

	if e.Seq == 0 {
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM events").Scan(&e.Seq); err != nil {
			return event.Event{}, ioError("append", s.path, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events
		(seq, id, type, stream_id, causation_id, correlation_id, actor, timestamp, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.Seq,
		e.ID,
		string(e.Type),
		e.StreamID,
		e.CausationID,
		e.CorrelationID,
		e.Actor,
		e.Timestamp,
		string(payloadJSON),
	)
	if err != nil {
		return event.Event{}, ioError("append", s.path, err)
	}
	if err := tx.Commit(); err != nil {
		return event.Event{}, ioError("append", s.path, err)
	}
	return e, nil
}

// ReadStream returns one stream's events at or after row offset fromOffset.
func (s *SQLiteStore) ReadStream(ctx context.Context, streamID string, fromOffset int) ([]event.Event, error) {
	if s.db == nil {
		return nil, closedError("read stream")
	}
	query, args := s.compiler.CompileStream(payload.NFC(streamID), fromOffset)
	return s.queryEvents(ctx, "read stream", query, args)
}

// Query returns the events matching f ordered by seq.
func (s *SQLiteStore) Query(ctx context.Context, f event.Filter) ([]event.Event, error) {
	if s.db == nil {
		return nil, closedError("query")
	}
	query, args := s.compiler.Compile(f.Normalize())
	return s.queryEvents(ctx, "query", query, args)
}

// Offset returns the number of stored events, or 0 if the count fails.
func (s *SQLiteStore) Offset() int {
	if s.db == nil {
		return 0
	}
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *SQLiteStore) queryEvents(ctx context.Context, op, query string, args []any) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ioError(op, s.path, err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		var (
			e           event.Event
			typ         string
			payloadJSON string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &typ, &e.StreamID, &e.CausationID,
			&e.CorrelationID, &e.Actor, &e.Timestamp, &payloadJSON); err != nil {
			return nil, ioError(op, s.path, fmt.Errorf("scan event: %w", err))
		}
		e.Type = event.Type(typ)
		if err := e.Payload.UnmarshalJSON([]byte(payloadJSON)); err != nil {
			return nil, &Error{Code: CodeEncode, Op: op, Path: s.path, Err: fmt.Errorf("event %s payload: %w", e.ID, err)}
		}
		if e.Payload == nil {
			e.Payload = payload.Object{}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError(op, s.path, fmt.Errorf("iterate events: %w", err))
	}
	return events, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 indexes correlation ids for cross-stream run queries.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_correlation
		ON events(correlation_id, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLiteStore) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
