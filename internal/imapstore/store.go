// Package imapstore serves an IMAP account as a services.Mailbox. System
// folders keep the client's ids (INBOX, TRASH, SPAM) and map to the
// server's mailbox names; every other folder id is a mailbox name.
package imapstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ajramos/leavebehind/internal/operation"
	"github.com/ajramos/leavebehind/internal/recent"
	"github.com/ajramos/leavebehind/internal/services"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Config describes the server and its special mailboxes
type Config struct {
	Server         string
	Username       string
	Password       string
	TrashMailbox   string
	SpamMailbox    string
	ArchiveMailbox string
	NoTLS          bool
}

// Store is a services.Mailbox over one IMAP connection. Commands are
// serialized because every operation first selects its mailbox.
type Store struct {
	mu     sync.Mutex
	client *client.Client
	cfg    Config
	folder string
	logger *log.Logger
}

var _ services.Mailbox = (*Store)(nil)

// Open connects and logs in
func Open(cfg Config, folder string) (*Store, error) {
	if cfg.Server == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("imap: server, username and password are required")
	}
	if cfg.TrashMailbox == "" {
		cfg.TrashMailbox = "Trash"
	}
	if cfg.SpamMailbox == "" {
		cfg.SpamMailbox = "Junk"
	}
	if cfg.ArchiveMailbox == "" {
		cfg.ArchiveMailbox = "Archive"
	}

	var c *client.Client
	var err error
	if cfg.NoTLS {
		c, err = client.Dial(cfg.Server)
	} else {
		c, err = client.DialTLS(cfg.Server, &tls.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("cannot connect to server %s: %w", cfg.Server, err)
	}
	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("authentication failure: %w", err)
	}

	return &Store{
		client: c,
		cfg:    cfg,
		folder: folder,
		logger: log.New(log.Writer(), "[imap] ", log.LstdFlags),
	}, nil
}

// SetLogger sets the logger for the store
func (s *Store) SetLogger(logger *log.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Close logs out
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.Logout()
}

// SetFolder changes the folder Refresh lists
func (s *Store) SetFolder(folder string) {
	s.mu.Lock()
	s.folder = folder
	s.mu.Unlock()
}

// mailboxFor maps a folder id to the server's mailbox name
func (s *Store) mailboxFor(folder string) string {
	switch folder {
	case operation.FolderInbox:
		return "INBOX"
	case operation.FolderTrash:
		return s.cfg.TrashMailbox
	case operation.FolderSpam:
		return s.cfg.SpamMailbox
	case operation.FolderMuted:
		return s.cfg.ArchiveMailbox
	}
	return folder
}

// folderFor is the inverse of mailboxFor
func (s *Store) folderFor(mailbox string) string {
	switch {
	case strings.EqualFold(mailbox, "INBOX"):
		return operation.FolderInbox
	case mailbox == s.cfg.TrashMailbox:
		return operation.FolderTrash
	case mailbox == s.cfg.SpamMailbox:
		return operation.FolderSpam
	}
	return mailbox
}

// Refresh lists the uids of the current folder, newest first
func (s *Store) Refresh(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := s.client.Select(s.mailboxFor(s.folder), true); err != nil {
		return nil, fmt.Errorf("select %s: %w", s.folder, err)
	}
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.DeletedFlag}
	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.folder, err)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	return ids, nil
}

// LookupBatchAction resolves a menu action id
func (s *Store) LookupBatchAction(actionID string) (operation.Kind, error) {
	kind, ok := operation.ParseKind(actionID)
	if !ok {
		return "", fmt.Errorf("unknown batch action %q", actionID)
	}
	return kind, nil
}

// ApplyMutation turns the label delta of m into mailbox moves and flag
// changes. A message that leaves its folder for nowhere else goes to the
// archive mailbox; deleting from the trash expunges it.
func (s *Store) ApplyMutation(ctx context.Context, m services.Mutation) error {
	seqset, err := uidSet(m.ItemIDs)
	if err != nil {
		return err
	}
	folder := m.Folder
	if folder == "" {
		folder = operation.FolderInbox
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.Select(s.mailboxFor(folder), false); err != nil {
		return fmt.Errorf("select %s: %w", folder, err)
	}

	if m.Action == operation.Delete && folder == operation.FolderTrash {
		return s.expunge(seqset)
	}

	delta := operation.Effect(m.Action, folder, strings.Split(m.Value, ","), m.Removed)
	var targets []string
	for _, id := range delta.Add {
		id = strings.TrimSpace(id)
		if id == "" || id == folder {
			continue
		}
		if id == operation.FolderStarred {
			if err := s.storeFlag(seqset, imap.AddFlags); err != nil {
				return err
			}
			continue
		}
		targets = append(targets, s.mailboxFor(id))
	}
	for _, id := range delta.Remove {
		if id == operation.FolderStarred {
			if err := s.storeFlag(seqset, imap.RemoveFlags); err != nil {
				return err
			}
		}
	}

	leaves := delta.LeavesFolder(folder)
	if leaves && len(targets) == 0 && folder != operation.FolderStarred {
		targets = append(targets, s.cfg.ArchiveMailbox)
	}
	for _, target := range targets {
		if err := s.client.UidCopy(seqset, target); err != nil {
			return fmt.Errorf("copy to %s: %w", target, err)
		}
	}
	if leaves && folder != operation.FolderStarred {
		return s.expunge(seqset)
	}
	return nil
}

func (s *Store) storeFlag(seqset *imap.SeqSet, op imap.FlagsOp) error {
	item := imap.FormatFlagsOp(op, true)
	if err := s.client.UidStore(seqset, item, []interface{}{imap.FlaggedFlag}, nil); err != nil {
		return fmt.Errorf("store flagged: %w", err)
	}
	return nil
}

func (s *Store) expunge(seqset *imap.SeqSet) error {
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.client.UidStore(seqset, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return fmt.Errorf("flag deleted: %w", err)
	}
	if err := s.client.Expunge(nil); err != nil {
		return fmt.Errorf("expunge: %w", err)
	}
	return nil
}

// Headers fetches the envelopes of ids in the current folder
func (s *Store) Headers(ctx context.Context, ids []string) (map[string]services.Header, error) {
	out := make(map[string]services.Header, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	seqset, err := uidSet(ids)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	folder := s.folder
	if _, err := s.client.Select(s.mailboxFor(folder), true); err != nil {
		return nil, fmt.Errorf("select %s: %w", folder, err)
	}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, imap.FetchFlags, imap.FetchInternalDate}
	go func() {
		done <- s.client.UidFetch(seqset, items, messages)
	}()
	for msg := range messages {
		h := services.Header{
			ID:       strconv.FormatUint(uint64(msg.Uid), 10),
			Received: msg.InternalDate,
			Labels:   []string{folder},
		}
		if env := msg.Envelope; env != nil {
			h.Subject = env.Subject
			if len(env.From) > 0 {
				h.Sender = formatAddress(env.From[0])
			}
			if h.Received.IsZero() {
				h.Received = env.Date
			}
		}
		for _, f := range msg.Flags {
			if f == imap.FlaggedFlag {
				h.Labels = append(h.Labels, operation.FolderStarred)
			}
		}
		out[h.ID] = h
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return out, nil
}

// Folders lists the server's mailboxes
func (s *Store) Folders(ctx context.Context) ([]recent.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.client.List("", "*", mailboxes)
	}()
	var out []recent.Entry
	for m := range mailboxes {
		if hasAttr(m.Attributes, imap.NoSelectAttr) {
			continue
		}
		out = append(out, recent.Entry{ID: s.folderFor(m.Name), Name: m.Name})
	}
	if err := <-done; err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return recent.ByNameIgnoreCase(out[i], out[j]) })
	return out, nil
}

func hasAttr(attrs []string, want string) bool {
	for _, a := range attrs {
		if a == want {
			return true
		}
	}
	return false
}

func formatAddress(a *imap.Address) string {
	if a.PersonalName != "" {
		return fmt.Sprintf("%s <%s>", a.PersonalName, a.Address())
	}
	return a.Address()
}

func uidSet(ids []string) (*imap.SeqSet, error) {
	if len(ids) == 0 {
		return nil, errors.New("imap: no message ids")
	}
	seqset := new(imap.SeqSet)
	for _, id := range ids {
		uid, err := strconv.ParseUint(id, 10, 32)
		if err != nil || uid == 0 {
			return nil, fmt.Errorf("imap: invalid message id %q", id)
		}
		seqset.AddNum(uint32(uid))
	}
	return seqset, nil
}
