package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ajramos/leavebehind/internal/boltstore"
	"github.com/ajramos/leavebehind/internal/config"
	"github.com/ajramos/leavebehind/internal/db"
	"github.com/ajramos/leavebehind/internal/gmail"
	"github.com/ajramos/leavebehind/internal/imapstore"
	"github.com/ajramos/leavebehind/internal/recent"
	"github.com/ajramos/leavebehind/internal/services"
	"github.com/ajramos/leavebehind/internal/tui"
	"github.com/ajramos/leavebehind/pkg/auth"
	"github.com/pterm/pterm"
)

// environment is the set of stores one run works against
type environment struct {
	mailbox services.Mailbox
	recent  recent.Persister
	state   tui.StateStore
	closers []io.Closer
}

// Close releases the stores in reverse opening order
func (e *environment) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openEnvironment opens the mail backend plus the stores keeping the recent
// folders and the pending undo state
func openEnvironment(ctx context.Context, cfg *config.Config, credPath, tokenPath string) (env *environment, err error) {
	env = &environment{}
	defer func() {
		if err != nil {
			_ = env.Close()
			env = nil
		}
	}()

	var store *db.Store
	if cfg.Backend == config.BackendLocal || cfg.RecentBackend == config.RecentSQLite {
		store, err = db.Open(ctx, cfg.DatabasePath)
		if err != nil {
			return env, fmt.Errorf("cannot open database: %w", err)
		}
		env.closers = append(env.closers, store)
		pterm.Debug.Printfln("database: %s", cfg.DatabasePath)
	}

	switch cfg.Backend {
	case config.BackendLocal:
		env.mailbox = db.NewMessageStore(store, cfg.Account, cfg.Folder)
	case config.BackendGmail:
		oauth := auth.NewOAuth2Config(credPath, tokenPath)
		svc, err := auth.NewGmailService(ctx, oauth)
		if err != nil {
			return env, fmt.Errorf("cannot initialize Gmail service: %w", err)
		}
		env.mailbox = gmail.NewClient(svc, cfg.Folder)
	case config.BackendIMAP:
		imapStore, err := imapstore.Open(imapstore.Config{
			Server:         cfg.IMAP.Server,
			Username:       cfg.IMAP.Username,
			Password:       cfg.IMAP.Password,
			TrashMailbox:   cfg.IMAP.TrashMailbox,
			SpamMailbox:    cfg.IMAP.SpamMailbox,
			ArchiveMailbox: cfg.IMAP.ArchiveMailbox,
			NoTLS:          cfg.IMAP.NoTLS,
		}, cfg.Folder)
		if err != nil {
			return env, fmt.Errorf("cannot open IMAP account: %w", err)
		}
		env.closers = append(env.closers, imapStore)
		env.mailbox = imapStore
	default:
		return env, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	switch cfg.RecentBackend {
	case config.RecentBolt:
		bolt, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return env, fmt.Errorf("cannot open state file: %w", err)
		}
		env.closers = append(env.closers, bolt)
		env.recent = bolt.Recent(cfg.Account)
		env.state = bolt.State(cfg.Account)
		pterm.Debug.Printfln("state file: %s", cfg.BoltPath)
	default:
		env.recent = db.NewRecentStore(store, cfg.Account)
		env.state = db.NewStateStore(store, cfg.Account)
	}
	return env, nil
}
