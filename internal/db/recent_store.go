package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ajramos/leavebehind/internal/recent"
	"github.com/jmoiron/sqlx"
)

// RecentStore persists one account's recent folder list
type RecentStore struct {
	db      *sqlx.DB
	account string
}

// NewRecentStore creates a recent folder store for account
func NewRecentStore(store *Store, account string) *RecentStore {
	if store == nil {
		return nil
	}
	return &RecentStore{db: store.DB(), account: account}
}

var _ recent.Persister = (*RecentStore)(nil)

type recentRow struct {
	FolderID  string `db:"folder_id"`
	Name      string `db:"name"`
	TouchedAt int64  `db:"touched_at"`
}

// Load returns the saved entries, least recently touched first
func (s *RecentStore) Load(ctx context.Context) ([]recent.Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("recent store not initialized")
	}
	var rows []recentRow
	err := s.db.SelectContext(ctx, &rows, `SELECT folder_id, name, touched_at FROM recent_folders
WHERE account=? ORDER BY touched_at, folder_id`, s.account)
	if err != nil {
		return nil, fmt.Errorf("load recent folders: %w", err)
	}
	out := make([]recent.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, recent.Entry{ID: r.FolderID, Name: r.Name, Touched: time.Unix(0, r.TouchedAt)})
	}
	return out, nil
}

// Save replaces the saved entries
func (s *RecentStore) Save(ctx context.Context, entries []recent.Entry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("recent store not initialized")
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM recent_folders WHERE account=?`, s.account); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear recent folders: %w", err)
	}
	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `INSERT INTO recent_folders(account, folder_id, name, touched_at) VALUES(?,?,?,?)
ON CONFLICT(account, folder_id) DO UPDATE SET name=excluded.name, touched_at=excluded.touched_at;`,
			s.account, e.ID, e.Name, e.Touched.UnixNano())
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("save recent folder %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}
