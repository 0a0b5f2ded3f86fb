package section

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps every section of a workspace in one SQLite table.
// It suits a single machine; it publishes no change events.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path and
// migrates the schema.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}

	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection serialises writers; CompareAndWrite relies on it.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS sections (
		key TEXT PRIMARY KEY,
		items TEXT NOT NULL,
		revision INTEGER NOT NULL
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database. Implements io.Closer.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Read returns the section's array and revision.
func (s *SQLiteStore) Read(ctx context.Context, key string) (Collection, error) {
	if err := ValidateKey(key); err != nil {
		return Collection{}, err
	}

	var items string
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT items, revision FROM sections WHERE key = ?`, key).Scan(&items, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return Collection{Items: emptyItems}, nil
	}
	if err != nil {
		return Collection{}, fmt.Errorf("failed to read section from sqlite: %w", err)
	}

	return Collection{Items: json.RawMessage(items), Revision: rev}, nil
}

// Write replaces the section unconditionally.
func (s *SQLiteStore) Write(ctx context.Context, key string, items json.RawMessage) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if err := validateItems(items); err != nil {
		return 0, err
	}

	rev, err := upsert(ctx, s.db, key, items)
	if err != nil {
		return 0, fmt.Errorf("failed to write section to sqlite: %w", err)
	}
	return rev, nil
}

// CompareAndWrite replaces the section only if its revision equals baseRevision.
func (s *SQLiteStore) CompareAndWrite(ctx context.Context, key string, items json.RawMessage, baseRevision int64) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if err := validateItems(items); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin sqlite transaction: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT revision FROM sections WHERE key = ?`, key).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read section revision: %w", err)
	}
	if current != baseRevision {
		return 0, ErrStaleRevision
	}

	rev, err := upsert(ctx, tx, key, items)
	if err != nil {
		return 0, fmt.Errorf("failed to write section to sqlite: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit section write: %w", err)
	}
	return rev, nil
}

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func upsert(ctx context.Context, q execQuerier, key string, items json.RawMessage) (int64, error) {
	var rev int64
	err := q.QueryRowContext(ctx, `INSERT INTO sections (key, items, revision) VALUES (?, ?, 1)
		ON CONFLICT(key) DO UPDATE SET items = excluded.items, revision = sections.revision + 1
		RETURNING revision`, key, string(items)).Scan(&rev)
	return rev, err
}
