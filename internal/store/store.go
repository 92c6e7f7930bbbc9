// Package store provides a SQLite-backed log of completed exchanges
// (summaries and answers), keyed by document content. The log is for the
// user's reference only; it is never fed back into a prompt.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Kind identifies the operation that produced an exchange.
type Kind string

const (
	// KindSummary is a document summary.
	KindSummary Kind = "summary"
	// KindAnswer is an answer to a query.
	KindAnswer Kind = "answer"
)

// Exchange is one completed summary or question/answer pair.
type Exchange struct {
	// DocumentKey identifies the document content (see DocumentKey).
	DocumentKey string
	// Source is the source string the document was loaded from.
	Source string
	// Kind is the operation.
	Kind Kind
	// Query is the user's question; empty for summaries.
	Query string
	// Answer is the generated text.
	Answer string
	// CreatedAt is when the exchange was persisted.
	CreatedAt time.Time
}

// ExchangeLog persists and retrieves exchanges keyed by document.
// Implementations must be safe for concurrent use.
type ExchangeLog interface {
	// Append persists a single exchange. A zero CreatedAt is set to now.
	Append(ctx context.Context, ex Exchange) error
	// Recent returns the most recent n exchanges for the document, ordered
	// oldest-first. If fewer than n exist, all are returned.
	Recent(ctx context.Context, documentKey string, n int) ([]Exchange, error)
	// Close releases any resources held by the log.
	Close() error
}

// DocumentKey returns a stable key for a document's text, so the same paper
// loaded from a different path or URL shares its history.
func DocumentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}

// SQLiteStore is an ExchangeLog backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the exchange database.
// It resolves to ~/.paperqa/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".paperqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS exchanges (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    document_key  TEXT    NOT NULL,
    source        TEXT    NOT NULL,
    kind          TEXT    NOT NULL CHECK(kind IN ('summary','answer')),
    query         TEXT    NOT NULL DEFAULT '',
    answer        TEXT    NOT NULL,
    created_at    INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_exchanges_document_created
    ON exchanges (document_key, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single exchange.
func (s *SQLiteStore) Append(ctx context.Context, ex Exchange) error {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}
	const q = `INSERT INTO exchanges (document_key, source, kind, query, answer, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		ex.DocumentKey, ex.Source, string(ex.Kind), ex.Query, ex.Answer, ex.CreatedAt.Unix(),
	); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n exchanges for the document, ordered
// oldest-first. Uses a subquery to select the tail then re-order it.
func (s *SQLiteStore) Recent(ctx context.Context, documentKey string, n int) ([]Exchange, error) {
	const q = `
SELECT document_key, source, kind, query, answer, created_at FROM (
    SELECT id, document_key, source, kind, query, answer, created_at
    FROM   exchanges
    WHERE  document_key = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, documentKey, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var (
			ex   Exchange
			kind string
			ts   int64
		)
		if err := rows.Scan(&ex.DocumentKey, &ex.Source, &kind, &ex.Query, &ex.Answer, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		ex.Kind = Kind(kind)
		ex.CreatedAt = time.Unix(ts, 0)
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return out, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
