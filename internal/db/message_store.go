package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ajramos/leavebehind/internal/operation"
	"github.com/ajramos/leavebehind/internal/recent"
	"github.com/ajramos/leavebehind/internal/services"
	"github.com/jmoiron/sqlx"
)

// ErrMessageNotFound is returned when a mutation names a message the account does not have
var ErrMessageNotFound = errors.New("message not found")

// Message is one row of the local mailbox
type Message struct {
	Account    string `db:"account" json:"account"`
	ID         string `db:"id" json:"id"`
	Subject    string `db:"subject" json:"subject"`
	Sender     string `db:"sender" json:"sender"`
	Snippet    string `db:"snippet" json:"snippet"`
	Labels     string `db:"labels" json:"-"`
	ReceivedAt int64  `db:"received_at" json:"received_at"`
}

// LabelIDs returns the message's folders
func (m Message) LabelIDs() []string {
	return splitLabels(m.Labels)
}

// HasLabel reports whether the message is in folder
func (m Message) HasLabel(folder string) bool {
	return strings.Contains(m.Labels, ","+folder+",")
}

// Header converts the row to its display summary
func (m Message) Header() services.Header {
	return services.Header{
		ID:       m.ID,
		Sender:   m.Sender,
		Subject:  m.Subject,
		Snippet:  m.Snippet,
		Received: time.Unix(m.ReceivedAt, 0),
		Labels:   m.LabelIDs(),
	}
}

// MessageStore is a services.DataStore over the local mailbox of one account
type MessageStore struct {
	db      *sqlx.DB
	account string

	mu     sync.RWMutex
	folder string
}

// NewMessageStore creates a message store for account, listing folder
func NewMessageStore(store *Store, account, folder string) *MessageStore {
	if store == nil {
		return nil
	}
	return &MessageStore{db: store.DB(), account: account, folder: folder}
}

var _ services.Mailbox = (*MessageStore)(nil)

// SetFolder changes the folder Refresh lists
func (s *MessageStore) SetFolder(folder string) {
	s.mu.Lock()
	s.folder = folder
	s.mu.Unlock()
}

// Folder returns the folder Refresh lists
func (s *MessageStore) Folder() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.folder
}

// Upsert inserts or replaces messages of the store's account
func (s *MessageStore) Upsert(ctx context.Context, msgs []Message, labels [][]string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("message store not initialized")
	}
	if len(labels) != len(msgs) {
		return fmt.Errorf("upsert: %d messages but %d label sets", len(msgs), len(labels))
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range msgs {
		m := msgs[i]
		if strings.TrimSpace(m.ID) == "" {
			_ = tx.Rollback()
			return fmt.Errorf("upsert: empty message id")
		}
		m.Account = s.account
		m.Labels = joinLabels(labels[i])
		if m.ReceivedAt == 0 {
			m.ReceivedAt = time.Now().Unix()
		}
		_, err := tx.NamedExecContext(ctx, `INSERT INTO messages(account, id, subject, sender, snippet, labels, received_at)
VALUES(:account, :id, :subject, :sender, :snippet, :labels, :received_at)
ON CONFLICT(account, id) DO UPDATE SET subject=excluded.subject, sender=excluded.sender,
  snippet=excluded.snippet, labels=excluded.labels, received_at=excluded.received_at;
`, m)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert message %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// Messages lists the messages in folder, newest first
func (s *MessageStore) Messages(ctx context.Context, folder string) ([]Message, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("message store not initialized")
	}
	var out []Message
	err := s.db.SelectContext(ctx, &out, `SELECT account, id, subject, sender, snippet, labels, received_at
FROM messages WHERE account=? AND instr(labels, ?) > 0
ORDER BY received_at DESC, id`, s.account, ","+folder+",")
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

// Message loads one message
func (s *MessageStore) Message(ctx context.Context, id string) (Message, error) {
	var m Message
	err := s.db.GetContext(ctx, &m, `SELECT account, id, subject, sender, snippet, labels, received_at
FROM messages WHERE account=? AND id=?`, s.account, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	if err != nil {
		return Message{}, err
	}
	return m, nil
}

// Headers loads the display summaries of ids
func (s *MessageStore) Headers(ctx context.Context, ids []string) (map[string]services.Header, error) {
	out := make(map[string]services.Header, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT account, id, subject, sender, snippet, labels, received_at
FROM messages WHERE account=? AND id IN (?)`, s.account, ids)
	if err != nil {
		return nil, err
	}
	var msgs []Message
	if err := s.db.SelectContext(ctx, &msgs, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load headers: %w", err)
	}
	for _, m := range msgs {
		out[m.ID] = m.Header()
	}
	return out, nil
}

// Folders lists every label used by the account's messages
func (s *MessageStore) Folders(ctx context.Context) ([]recent.Entry, error) {
	var rows []string
	if err := s.db.SelectContext(ctx, &rows, `SELECT labels FROM messages WHERE account=?`, s.account); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	seen := make(map[string]bool)
	for _, r := range rows {
		for _, l := range splitLabels(r) {
			seen[l] = true
		}
	}
	out := make([]recent.Entry, 0, len(seen))
	for l := range seen {
		out = append(out, recent.Entry{ID: l, Name: l})
	}
	sort.Slice(out, func(i, j int) bool { return recent.ByNameIgnoreCase(out[i], out[j]) })
	return out, nil
}

// Refresh returns the ids of the current folder in display order
func (s *MessageStore) Refresh(ctx context.Context) ([]string, error) {
	msgs, err := s.Messages(ctx, s.Folder())
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// LookupBatchAction resolves a menu action id
func (s *MessageStore) LookupBatchAction(actionID string) (operation.Kind, error) {
	kind, ok := operation.ParseKind(actionID)
	if !ok {
		return "", fmt.Errorf("unknown batch action %q", actionID)
	}
	return kind, nil
}

// ApplyMutation applies the label delta of m to every named message in one
// transaction. Deleting from the trash removes the messages for good.
func (s *MessageStore) ApplyMutation(ctx context.Context, m services.Mutation) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("message store not initialized")
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	purge := m.Action == operation.Delete && m.Folder == operation.FolderTrash
	delta := operation.Effect(m.Action, m.Folder, splitValue(m.Value), m.Removed)

	for _, id := range m.ItemIDs {
		if purge {
			res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE account=? AND id=?`, s.account, id)
			if err != nil {
				return fmt.Errorf("purge %s: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
			}
			continue
		}

		var current string
		err := tx.GetContext(ctx, &current, `SELECT labels FROM messages WHERE account=? AND id=?`, s.account, id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("load labels of %s: %w", id, err)
		}
		next := joinLabels(applyDelta(splitLabels(current), delta))
		if _, err := tx.ExecContext(ctx, `UPDATE messages SET labels=? WHERE account=? AND id=?`, next, s.account, id); err != nil {
			return fmt.Errorf("update labels of %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func applyDelta(labels []string, d operation.Delta) []string {
	set := make(map[string]bool, len(labels)+len(d.Add))
	for _, l := range labels {
		set[l] = true
	}
	for _, l := range d.Remove {
		delete(set, l)
	}
	for _, l := range d.Add {
		set[l] = true
	}
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// labels are stored as ",A,B," so a folder can be matched with instr
func joinLabels(labels []string) string {
	var b strings.Builder
	b.WriteString(",")
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		b.WriteString(l)
		b.WriteString(",")
	}
	return b.String()
}

func splitLabels(s string) []string {
	var out []string
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func splitValue(v string) []string {
	return splitLabels(v)
}
