package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// StateStore keeps the encoded pending undo groups of an account between runs
type StateStore struct {
	db      *sqlx.DB
	account string
}

// NewStateStore creates a state store for account
func NewStateStore(store *Store, account string) *StateStore {
	if store == nil {
		return nil
	}
	return &StateStore{db: store.DB(), account: account}
}

// Save stores data, replacing what was saved before
func (s *StateStore) Save(ctx context.Context, data []byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("state store not initialized")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO undo_state(account, data, saved_at) VALUES(?,?,?)
ON CONFLICT(account) DO UPDATE SET data=excluded.data, saved_at=excluded.saved_at;`,
		s.account, data, time.Now().Unix())
	return err
}

// Take returns the saved data and clears it, so a state is restored once
func (s *StateStore) Take(ctx context.Context) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("state store not initialized")
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var data []byte
	err = tx.GetContext(ctx, &data, `SELECT data FROM undo_state WHERE account=?`, s.account)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM undo_state WHERE account=?`, s.account); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return data, true, nil
}
