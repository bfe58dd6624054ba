// Package cache provides the local SQLite cache of WaniKani data.
//
// The cache is a single-file database holding one table per resource type
// (radicals, kanji, vocab, kana_vocab, assignments, reviews, user) plus the
// cache_info table of per-class freshness watermarks that drives
// conditional refresh.
//
// Column layout follows one rule: scalar fields used for filtering or
// sorting (ids, levels, timestamps, flags) are native typed columns; any
// nested record or homogeneous list is stored as a JSON text blob and never
// decomposed further. That keeps the schema stable when the API grows new
// fields inside nested structures while still allowing indexed range
// queries on the fields that matter.
//
// All writes use replace semantics keyed on the resource's server-assigned
// identifier, so replaying a fetched page is a no-op. The one exception is
// the reviews table, which is keyed by a local surrogate because pending
// rows have no server identifier yet.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// timeLayout is the stored timestamp format: RFC 3339 in UTC with a fixed
// six-digit fractional second. The fixed width keeps lexicographic order
// equal to chronological order, which the due queries rely on.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// DB wraps the SQLite cache connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the cache database at path. The parent directory
// is created if needed. The caller must Close the returned DB.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	// Sync passes are sequential and every write path shares one
	// transaction boundary, so a single connection is enough.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, path: path}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates all cache tables and seeds the cache_info rows.
// Idempotent: safe to call on every startup, and re-running it never
// clobbers existing watermarks.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_info (
		id INTEGER PRIMARY KEY,
		etag TEXT,
		last_modified TEXT,
		updated_after TEXT
	);

	CREATE TABLE IF NOT EXISTS radicals (
		id INTEGER PRIMARY KEY,
		aux_meanings TEXT NOT NULL,
		created_at TEXT NOT NULL,
		document_url TEXT NOT NULL,
		hidden_at TEXT,
		lesson_position INTEGER NOT NULL,
		level INTEGER NOT NULL,
		meaning_mnemonic TEXT NOT NULL,
		meanings TEXT NOT NULL,
		slug TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		amalgamation_subject_ids TEXT NOT NULL,
		characters TEXT,
		character_images TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS kanji (
		id INTEGER PRIMARY KEY,
		aux_meanings TEXT NOT NULL,
		created_at TEXT NOT NULL,
		document_url TEXT NOT NULL,
		hidden_at TEXT,
		lesson_position INTEGER NOT NULL,
		level INTEGER NOT NULL,
		meaning_mnemonic TEXT NOT NULL,
		meanings TEXT NOT NULL,
		slug TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		characters TEXT NOT NULL,
		amalgamation_subject_ids TEXT NOT NULL,
		component_subject_ids TEXT NOT NULL,
		meaning_hint TEXT,
		reading_hint TEXT,
		reading_mnemonic TEXT NOT NULL,
		readings TEXT NOT NULL,
		visually_similar_subject_ids TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vocab (
		id INTEGER PRIMARY KEY,
		aux_meanings TEXT NOT NULL,
		created_at TEXT NOT NULL,
		document_url TEXT NOT NULL,
		hidden_at TEXT,
		lesson_position INTEGER NOT NULL,
		level INTEGER NOT NULL,
		meaning_mnemonic TEXT NOT NULL,
		meanings TEXT NOT NULL,
		slug TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		characters TEXT NOT NULL,
		component_subject_ids TEXT NOT NULL,
		context_sentences TEXT NOT NULL,
		parts_of_speech TEXT NOT NULL,
		pronunciation_audios TEXT NOT NULL,
		readings TEXT NOT NULL,
		reading_mnemonic TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS kana_vocab (
		id INTEGER PRIMARY KEY,
		aux_meanings TEXT NOT NULL,
		created_at TEXT NOT NULL,
		document_url TEXT NOT NULL,
		hidden_at TEXT,
		lesson_position INTEGER NOT NULL,
		level INTEGER NOT NULL,
		meaning_mnemonic TEXT NOT NULL,
		meanings TEXT NOT NULL,
		slug TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		characters TEXT NOT NULL,
		context_sentences TEXT NOT NULL,
		parts_of_speech TEXT NOT NULL,
		pronunciation_audios TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assignments (
		id INTEGER PRIMARY KEY,
		subject_id INTEGER NOT NULL,
		subject_type INTEGER NOT NULL,
		srs_stage INTEGER NOT NULL,
		hidden INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		available_at TEXT,
		burned_at TEXT,
		passed_at TEXT,
		resurrected_at TEXT,
		started_at TEXT,
		unlocked_at TEXT
	);

	-- Pending and confirmed reviews share this table. A row with a NULL
	-- available_at (equivalently a NULL review_id) is a pending review
	-- awaiting submission; confirmation fills both in place.
	CREATE TABLE IF NOT EXISTS reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		review_id INTEGER,
		assignment_id INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		incorrect_meaning_answers INTEGER NOT NULL,
		incorrect_reading_answers INTEGER NOT NULL,
		status INTEGER NOT NULL,
		available_at TEXT,
		CHECK ((review_id IS NULL) = (available_at IS NULL))
	);

	CREATE TABLE IF NOT EXISTS user (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		level INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		vacation_started_at TEXT,
		subscription TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_radicals_level ON radicals(level);
	CREATE INDEX IF NOT EXISTS idx_kanji_level ON kanji(level);
	CREATE INDEX IF NOT EXISTS idx_vocab_level ON vocab(level);
	CREATE INDEX IF NOT EXISTS idx_kana_vocab_level ON kana_vocab(level);

	CREATE INDEX IF NOT EXISTS idx_assignments_available ON assignments(available_at);
	CREATE INDEX IF NOT EXISTS idx_assignments_subject ON assignments(subject_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_lessons
	    ON assignments(hidden, unlocked_at, started_at);

	CREATE INDEX IF NOT EXISTS idx_reviews_assignment ON reviews(assignment_id);
	CREATE INDEX IF NOT EXISTS idx_reviews_available ON reviews(available_at);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Seed the fixed watermark rows with empty state. INSERT OR IGNORE so
	// re-initialization never resets an advanced watermark.
	for _, class := range AllResourceClasses() {
		if _, err := db.conn.ExecContext(ctx,
			"INSERT OR IGNORE INTO cache_info (id) VALUES (?)", int(class)); err != nil {
			return fmt.Errorf("failed to seed cache_info row %d: %w", int(class), err)
		}
	}

	return nil
}

// Begin starts a write transaction. All page merges and the reconciler's
// confirm path run inside one of these.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin transaction", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx is an open cache transaction. It exposes the same write operations as
// DB; reads outside a transaction go through DB directly.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return storeErr("commit transaction", err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to defer after a commit.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// querier is satisfied by both *sql.DB and *sql.Tx so codec helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// fmtTime encodes a timestamp in the stored layout.
func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime decodes a stored timestamp. Any value not in the stored layout
// is an error; callers surface it as a DecodeError for the row.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// timeToNullString converts an optional timestamp for storage.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

// nullStringToTime converts an optional stored timestamp back.
func nullStringToTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
