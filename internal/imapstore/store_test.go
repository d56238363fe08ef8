package imapstore

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ajramos/leavebehind/internal/operation"
	"github.com/ajramos/leavebehind/internal/services"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	srv := server.New(memory.New())
	srv.AllowInsecureAuth = true

	listener, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = srv.Serve(listener)
	}()

	s, err := Open(Config{
		Server:   listener.Addr().String(),
		Username: "username",
		Password: "password",
		NoTLS:    true,
	}, operation.FolderInbox)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
		_ = srv.Close()
		wg.Wait()
	})

	for _, name := range []string{"Trash", "Junk", "Archive", "Receipts"} {
		require.NoError(t, s.client.Create(name))
	}
	for _, subject := range []string{"Second", "Third"} {
		msg := "From: Ana <ana@example.org>\r\n" +
			"Subject: " + subject + "\r\n" +
			"Date: Wed, 11 May 2016 14:31:59 +0000\r\n" +
			"\r\n" +
			"body"
		require.NoError(t, s.client.Append("INBOX", nil, time.Now(), bytes.NewBufferString(msg)))
	}
	return s
}

func refresh(t *testing.T, s *Store, folder string) []string {
	t.Helper()
	s.SetFolder(folder)
	ids, err := s.Refresh(context.Background())
	require.NoError(t, err)
	return ids
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(Config{Server: "localhost:1"}, operation.FolderInbox)
	assert.Error(t, err)
}

func TestStore_RefreshNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ids := refresh(t, s, operation.FolderInbox)
	require.Len(t, ids, 3)
	assert.Greater(t, ids[0], ids[1])
	assert.Empty(t, refresh(t, s, operation.FolderTrash))
}

func TestStore_Headers(t *testing.T) {
	s := newTestStore(t)
	ids := refresh(t, s, operation.FolderInbox)

	headers, err := s.Headers(context.Background(), ids[:1])
	require.NoError(t, err)
	require.Contains(t, headers, ids[0])
	assert.Equal(t, "Third", headers[ids[0]].Subject)
	assert.Equal(t, "Ana <ana@example.org>", headers[ids[0]].Sender)
	assert.Equal(t, []string{operation.FolderInbox}, headers[ids[0]].Labels)
}

func TestStore_ApplyMutationMovesMessages(t *testing.T) {
	tests := []struct {
		name   string
		action operation.Kind
		value  string
		dest   string
	}{
		{"delete", operation.Delete, "", operation.FolderTrash},
		{"archive", operation.Archive, "", "Archive"},
		{"spam", operation.ReportSpam, "", operation.FolderSpam},
		{"mute", operation.Mute, "", "Archive"},
		{"change_folder", operation.ChangeFolder, "Receipts", "Receipts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ids := refresh(t, s, operation.FolderInbox)

			m := services.Mutation{ItemIDs: ids[:2], Action: tt.action, Folder: operation.FolderInbox, Value: tt.value}
			if tt.action == operation.ChangeFolder {
				m.Removed = []string{operation.FolderInbox}
			}
			require.NoError(t, s.ApplyMutation(context.Background(), m))

			assert.Equal(t, ids[2:], refresh(t, s, operation.FolderInbox))
			assert.Len(t, refresh(t, s, tt.dest), 2)
		})
	}
}

func TestStore_DeleteFromTrashExpunges(t *testing.T) {
	s := newTestStore(t)
	ids := refresh(t, s, operation.FolderInbox)
	require.NoError(t, s.ApplyMutation(context.Background(), services.Mutation{
		ItemIDs: ids[:1], Action: operation.Delete, Folder: operation.FolderInbox,
	}))

	trash := refresh(t, s, operation.FolderTrash)
	require.Len(t, trash, 1)
	require.NoError(t, s.ApplyMutation(context.Background(), services.Mutation{
		ItemIDs: trash, Action: operation.Delete, Folder: operation.FolderTrash,
	}))
	assert.Empty(t, refresh(t, s, operation.FolderTrash))
}

func TestStore_RemoveStarKeepsMessage(t *testing.T) {
	s := newTestStore(t)
	ids := refresh(t, s, operation.FolderInbox)
	require.NoError(t, s.ApplyMutation(context.Background(), services.Mutation{
		ItemIDs: ids[:1], Action: operation.RemoveStar, Folder: operation.FolderInbox,
	}))
	assert.Equal(t, ids, refresh(t, s, operation.FolderInbox))
}

func TestStore_Folders(t *testing.T) {
	s := newTestStore(t)
	folders, err := s.Folders(context.Background())
	require.NoError(t, err)

	byName := map[string]string{}
	for _, f := range folders {
		byName[f.Name] = f.ID
	}
	assert.Equal(t, operation.FolderInbox, byName["INBOX"])
	assert.Equal(t, operation.FolderTrash, byName["Trash"])
	assert.Equal(t, operation.FolderSpam, byName["Junk"])
	assert.Equal(t, "Receipts", byName["Receipts"])
}

func TestUidSet(t *testing.T) {
	_, err := uidSet(nil)
	assert.Error(t, err)
	_, err = uidSet([]string{"abc"})
	assert.Error(t, err)
	_, err = uidSet([]string{"0"})
	assert.Error(t, err)

	set, err := uidSet([]string{"3", "7"})
	require.NoError(t, err)
	assert.True(t, set.Contains(3))
	assert.True(t, set.Contains(7))
}
