package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database that backs the local mailbox, the recent
// folder lists and saved undo state
type Store struct {
	db *sqlx.DB
}

// Open opens (and creates/migrates) the database at the given path
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	// Ensure file exists with strict perms
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		f, err := os.OpenFile(dbPath, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return nil, fmt.Errorf("create database file: %w", err)
		}
		f.Close()
	}
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Pragmas
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout=5000;")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous=NORMAL;")

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

var migrations = []string{
	// v1: local mailbox
	`
CREATE TABLE IF NOT EXISTS messages (
  account     TEXT NOT NULL,
  id          TEXT NOT NULL,
  subject     TEXT NOT NULL DEFAULT '',
  sender      TEXT NOT NULL DEFAULT '',
  snippet     TEXT NOT NULL DEFAULT '',
  labels      TEXT NOT NULL DEFAULT ',',
  received_at INTEGER NOT NULL,
  PRIMARY KEY (account, id)
);
CREATE INDEX IF NOT EXISTS idx_messages_received ON messages(account, received_at DESC);
`,
	// v2: recent folders per account
	`
CREATE TABLE IF NOT EXISTS recent_folders (
  account    TEXT NOT NULL,
  folder_id  TEXT NOT NULL,
  name       TEXT NOT NULL,
  touched_at INTEGER NOT NULL,
  PRIMARY KEY (account, folder_id)
);
`,
	// v3: pending undo groups saved across restarts
	`
CREATE TABLE IF NOT EXISTS undo_state (
  account    TEXT PRIMARY KEY,
  data       BLOB NOT NULL,
  saved_at   INTEGER NOT NULL
);
`,
}

func (s *Store) migrate(ctx context.Context) error {
	// user_version based migrations
	var ver int
	_ = s.db.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&ver)

	for ver < len(migrations) {
		next := ver + 1
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, migrations[ver])
		if err == nil {
			_, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version=%d;", next))
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate v%d: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		ver = next
	}
	return nil
}

// Version returns the applied schema version
func (s *Store) Version(ctx context.Context) (int, error) {
	var ver int
	if err := s.db.GetContext(ctx, &ver, "PRAGMA user_version;"); err != nil {
		return 0, err
	}
	return ver, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sqlx.DB for use by domain stores
func (s *Store) DB() *sqlx.DB {
	return s.db
}
