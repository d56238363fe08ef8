package db

import (
	"context"
	"testing"

	"github.com/ajramos/leavebehind/internal/operation"
	"github.com/ajramos/leavebehind/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMessages(t *testing.T, s *MessageStore) {
	t.Helper()
	msgs := []Message{
		{ID: "m1", Subject: "Lunch?", Sender: "ana@example.com", ReceivedAt: 300},
		{ID: "m2", Subject: "Invoice", Sender: "billing@example.com", ReceivedAt: 200},
		{ID: "m3", Subject: "Weekly report", Sender: "boss@example.com", ReceivedAt: 100},
		{ID: "m4", Subject: "Old thing", Sender: "spam@example.com", ReceivedAt: 50},
	}
	labels := [][]string{
		{operation.FolderInbox, operation.FolderStarred},
		{operation.FolderInbox, "Work"},
		{operation.FolderInbox},
		{operation.FolderTrash},
	}
	require.NoError(t, s.Upsert(context.Background(), msgs, labels))
}

func TestMessageStore_RefreshListsFolderNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore(openTestStore(t), "me", operation.FolderInbox)
	seedMessages(t, s)

	ids, err := s.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)

	s.SetFolder("Work")
	ids, err = s.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, ids)

	// another account sees nothing
	other := NewMessageStore(&Store{db: s.db}, "you", operation.FolderInbox)
	ids, err = other.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMessageStore_ApplyMutation(t *testing.T) {
	tests := []struct {
		name   string
		mut    services.Mutation
		id     string
		labels []string
	}{
		{
			name:   "delete",
			mut:    services.Mutation{ItemIDs: []string{"m1"}, Action: operation.Delete, Folder: operation.FolderInbox},
			id:     "m1",
			labels: []string{operation.FolderStarred, operation.FolderTrash},
		},
		{
			name:   "archive",
			mut:    services.Mutation{ItemIDs: []string{"m2"}, Action: operation.Archive, Folder: operation.FolderInbox},
			id:     "m2",
			labels: []string{"Work"},
		},
		{
			name:   "report_spam",
			mut:    services.Mutation{ItemIDs: []string{"m3"}, Action: operation.ReportSpam, Folder: operation.FolderInbox},
			id:     "m3",
			labels: []string{operation.FolderSpam},
		},
		{
			name:   "remove_star",
			mut:    services.Mutation{ItemIDs: []string{"m1"}, Action: operation.RemoveStar, Folder: operation.FolderStarred},
			id:     "m1",
			labels: []string{operation.FolderInbox},
		},
		{
			name: "change_folder",
			mut: services.Mutation{
				ItemIDs: []string{"m2"},
				Action:  operation.ChangeFolder,
				Folder:  operation.FolderInbox,
				Value:   "Home,Later",
				Removed: []string{"Work"},
			},
			id:     "m2",
			labels: []string{"Home", operation.FolderInbox, "Later"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := NewMessageStore(openTestStore(t), "me", operation.FolderInbox)
			seedMessages(t, s)

			require.NoError(t, s.ApplyMutation(ctx, tt.mut))
			m, err := s.Message(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.labels, m.LabelIDs())
		})
	}
}

func TestMessageStore_ArchiveFromLabelLeavesFolder(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore(openTestStore(t), "me", "Work")
	seedMessages(t, s)

	require.NoError(t, s.ApplyMutation(ctx, services.Mutation{
		ItemIDs: []string{"m2"}, Action: operation.Archive, Folder: "Work",
	}))

	ids, err := s.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	m, err := s.Message(ctx, "m2")
	require.NoError(t, err)
	assert.False(t, m.HasLabel("Work"))
	assert.False(t, m.HasLabel(operation.FolderInbox))
}

func TestMessageStore_DeleteFromTrashPurges(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore(openTestStore(t), "me", operation.FolderTrash)
	seedMessages(t, s)

	require.NoError(t, s.ApplyMutation(ctx, services.Mutation{
		ItemIDs: []string{"m4"}, Action: operation.Delete, Folder: operation.FolderTrash,
	}))
	_, err := s.Message(ctx, "m4")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageStore_UnknownMessageRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore(openTestStore(t), "me", operation.FolderInbox)
	seedMessages(t, s)

	err := s.ApplyMutation(ctx, services.Mutation{
		ItemIDs: []string{"m1", "nope"}, Action: operation.Archive, Folder: operation.FolderInbox,
	})
	assert.ErrorIs(t, err, ErrMessageNotFound)

	m, err := s.Message(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, m.HasLabel(operation.FolderInbox))
}

func TestMessageStore_LookupBatchAction(t *testing.T) {
	s := &MessageStore{}
	kind, err := s.LookupBatchAction("Report-Spam")
	require.NoError(t, err)
	assert.Equal(t, operation.ReportSpam, kind)

	_, err = s.LookupBatchAction("launch")
	assert.Error(t, err)
}

func TestMessageStore_UpsertValidation(t *testing.T) {
	s := NewMessageStore(openTestStore(t), "me", operation.FolderInbox)
	err := s.Upsert(context.Background(), []Message{{ID: ""}}, [][]string{nil})
	assert.Error(t, err)
	err = s.Upsert(context.Background(), []Message{{ID: "x"}}, nil)
	assert.Error(t, err)
}

func TestMessageStore_HeadersAndFolders(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore(openTestStore(t), "me", operation.FolderInbox)
	seedMessages(t, s)

	headers, err := s.Headers(ctx, []string{"m2", "m3", "missing"})
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, "Invoice", headers["m2"].Subject)
	assert.Equal(t, []string{operation.FolderInbox, "Work"}, headers["m2"].Labels)
	assert.Equal(t, int64(100), headers["m3"].Received.Unix())

	headers, err = s.Headers(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, headers)

	folders, err := s.Folders(ctx)
	require.NoError(t, err)
	var names []string
	for _, f := range folders {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"INBOX", "STARRED", "TRASH", "Work"}, names)
}
