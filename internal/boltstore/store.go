// Package boltstore keeps recent folder lists and saved undo state in a
// bbolt file, for setups that do not want the SQLite database.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ajramos/leavebehind/internal/recent"
	bolt "go.etcd.io/bbolt"
)

const (
	metadataBucket  = "metadata"
	recentBucket    = "recent"
	stateBucket     = "undo_state"
	versionKey      = "version"
	boltFileVersion = 1
)

// Store is a bbolt file with one sub-bucket per account
type Store struct {
	dbFile string
	db     *bolt.DB
}

// Open opens or creates the file and its buckets
func Open(filename string) (*Store, error) {
	options := *bolt.DefaultOptions
	options.Timeout = 10 * time.Second

	if err := os.MkdirAll(filepath.Dir(filename), 0o700); err != nil {
		return nil, fmt.Errorf("cannot open %q: %w", filename, err)
	}
	db, err := bolt.Open(filename, 0o600, &options)
	if err != nil {
		return nil, err
	}
	s := &Store{dbFile: filename, db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		for _, name := range []string{recentBucket, stateBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		if v := meta.Get([]byte(versionKey)); v != nil {
			if got := binary.BigEndian.Uint64(v); got != boltFileVersion {
				return fmt.Errorf("unsupported store version %d", got)
			}
			return nil
		}
		version := make([]byte, 8)
		binary.BigEndian.PutUint64(version, boltFileVersion)
		return meta.Put([]byte(versionKey), version)
	})
}

// Close closes the file
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the file name
func (s *Store) Path() string {
	return s.dbFile
}

// RecentStore is the recent.Persister of one account
type RecentStore struct {
	store   *Store
	account string
}

// Recent returns the persister for account
func (s *Store) Recent(account string) *RecentStore {
	return &RecentStore{store: s, account: account}
}

var _ recent.Persister = (*RecentStore)(nil)

// Load returns the entries, least recently touched first
func (r *RecentStore) Load(ctx context.Context) ([]recent.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []recent.Entry
	err := r.store.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(recentBucket)).Bucket([]byte(r.account))
		if bucket == nil {
			return nil
		}
		// keys are big endian touch times so the cursor walks oldest first
		return bucket.ForEach(func(k, v []byte) error {
			var e recent.Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode recent entry %x: %w", k, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Save replaces the entries of the account
func (r *RecentStore) Save(ctx context.Context, entries []recent.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.store.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(recentBucket))
		if root.Bucket([]byte(r.account)) != nil {
			if err := root.DeleteBucket([]byte(r.account)); err != nil {
				return err
			}
		}
		bucket, err := root.CreateBucket([]byte(r.account))
		if err != nil {
			return err
		}
		for _, e := range entries {
			value, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := bucket.Put(recentKey(e), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func recentKey(e recent.Entry) []byte {
	var buf bytes.Buffer
	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(e.Touched.UnixNano()))
	buf.Write(ts)
	buf.WriteString(e.ID)
	return buf.Bytes()
}

// SaveState stores the encoded undo state of account
func (s *Store) SaveState(account string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(stateBucket)).Put([]byte(account), data)
	})
}

// TakeState returns the saved undo state of account and clears it
func (s *Store) TakeState(account string) ([]byte, bool, error) {
	var data []byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(stateBucket))
		v := bucket.Get([]byte(account))
		if v == nil {
			return nil
		}
		// v is only valid inside the transaction
		data = append([]byte(nil), v...)
		return bucket.Delete([]byte(account))
	})
	if err != nil {
		return nil, false, err
	}
	return data, data != nil, nil
}

// StateStore is the undo state of one account
type StateStore struct {
	store   *Store
	account string
}

// State returns the undo state store of account
func (s *Store) State(account string) *StateStore {
	return &StateStore{store: s, account: account}
}

// Save stores data, replacing any earlier state
func (st *StateStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return st.store.SaveState(st.account, data)
}

// Take returns the saved state and clears it
func (st *StateStore) Take(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return st.store.TakeState(st.account)
}
