package gmail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ajramos/leavebehind/internal/operation"
	"github.com/ajramos/leavebehind/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

type fakeGmail struct {
	mu       sync.Mutex
	requests []string
	modifies []gmail.BatchModifyMessagesRequest
	deletes  []gmail.BatchDeleteMessagesRequest
	failGet  map[string]bool
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/")
	switch {
	case r.Method == http.MethodGet && path == "messages":
		page := r.URL.Query().Get("pageToken")
		if page == "" {
			writeJSON(w, gmail.ListMessagesResponse{
				Messages:      []*gmail.Message{{Id: "m1"}, {Id: "m2"}},
				NextPageToken: "p2",
			})
			return
		}
		writeJSON(w, gmail.ListMessagesResponse{Messages: []*gmail.Message{{Id: "m3"}}})
	case r.Method == http.MethodGet && strings.HasPrefix(path, "messages/"):
		id := strings.TrimPrefix(path, "messages/")
		if f.failGet[id] {
			http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
			return
		}
		writeJSON(w, gmail.Message{
			Id:           id,
			Snippet:      "snippet " + id,
			LabelIds:     []string{"INBOX"},
			InternalDate: 1700000000000,
			Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "Ana <ana@example.com>"},
				{Name: "Subject", Value: "Hello " + id},
			}},
		})
	case r.Method == http.MethodPost && path == "messages/batchModify":
		var req gmail.BatchModifyMessagesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.modifies = append(f.modifies, req)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && path == "messages/batchDelete":
		var req gmail.BatchDeleteMessagesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.deletes = append(f.deletes, req)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/trash"):
		writeJSON(w, gmail.Message{Id: strings.TrimSuffix(strings.TrimPrefix(path, "messages/"), "/trash")})
	case r.Method == http.MethodGet && path == "labels":
		writeJSON(w, gmail.ListLabelsResponse{Labels: []*gmail.Label{
			{Id: "INBOX", Name: "INBOX"},
			{Id: "UNREAD", Name: "UNREAD"},
			{Id: "Label_1", Name: "receipts"},
			{Id: "Label_2", Name: "Family"},
		}})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T) (*Client, *fakeGmail) {
	t.Helper()
	fake := &fakeGmail{failGet: map[string]bool{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return NewClient(svc, operation.FolderInbox), fake
}

func TestClient_NotInitialized(t *testing.T) {
	var c *Client
	_, err := c.Refresh(context.Background())
	assert.ErrorContains(t, err, "gmail client not initialized")

	c = NewClient(nil, "INBOX")
	err = c.ApplyMutation(context.Background(), services.Mutation{ItemIDs: []string{"x"}, Action: operation.Archive})
	assert.ErrorContains(t, err, "gmail client not initialized")
}

func TestClient_RefreshFollowsPages(t *testing.T) {
	c, fake := newTestClient(t)

	ids, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)
	assert.Len(t, fake.requests, 2)

	c.SetMaxList(2)
	ids, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)
}

func TestClient_ApplyMutation(t *testing.T) {
	tests := []struct {
		name       string
		mutation   services.Mutation
		wantAdd    []string
		wantRemove []string
	}{
		{
			name:       "archive",
			mutation:   services.Mutation{ItemIDs: []string{"m1", "m2"}, Action: operation.Archive, Folder: "INBOX"},
			wantRemove: []string{"INBOX"},
		},
		{
			name:       "spam_from_label",
			mutation:   services.Mutation{ItemIDs: []string{"m1"}, Action: operation.ReportSpam, Folder: "Label_1"},
			wantAdd:    []string{"SPAM"},
			wantRemove: []string{"INBOX", "Label_1"},
		},
		{
			name:       "mute_skips_missing_label",
			mutation:   services.Mutation{ItemIDs: []string{"m1"}, Action: operation.Mute, Folder: "INBOX"},
			wantRemove: []string{"INBOX"},
		},
		{
			name: "change_folder",
			mutation: services.Mutation{ItemIDs: []string{"m1"}, Action: operation.ChangeFolder, Folder: "INBOX",
				Value: "Label_1,Label_2", Removed: []string{"INBOX"}},
			wantAdd:    []string{"Label_1", "Label_2"},
			wantRemove: []string{"INBOX"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newTestClient(t)
			require.NoError(t, c.ApplyMutation(context.Background(), tt.mutation))
			require.Len(t, fake.modifies, 1)
			assert.Equal(t, tt.mutation.ItemIDs, fake.modifies[0].Ids)
			assert.Equal(t, tt.wantAdd, fake.modifies[0].AddLabelIds)
			assert.Equal(t, tt.wantRemove, fake.modifies[0].RemoveLabelIds)
		})
	}
}

func TestClient_DeleteUsesTrash(t *testing.T) {
	c, fake := newTestClient(t)
	err := c.ApplyMutation(context.Background(), services.Mutation{ItemIDs: []string{"m1", "m2"}, Action: operation.Delete, Folder: "INBOX"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"POST /gmail/v1/users/me/messages/m1/trash",
		"POST /gmail/v1/users/me/messages/m2/trash",
	}, fake.requests)
	assert.Empty(t, fake.modifies)
}

func TestClient_DeleteFromTrashPurges(t *testing.T) {
	c, fake := newTestClient(t)
	err := c.ApplyMutation(context.Background(), services.Mutation{ItemIDs: []string{"m1"}, Action: operation.Delete, Folder: operation.FolderTrash})
	require.NoError(t, err)
	require.Len(t, fake.deletes, 1)
	assert.Equal(t, []string{"m1"}, fake.deletes[0].Ids)
}

func TestClient_Headers(t *testing.T) {
	c, fake := newTestClient(t)
	c.SetWorkers(2)
	fake.failGet["m3"] = true

	headers, err := c.Headers(context.Background(), []string{"m1", "m2", "m3"})
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, "Hello m1", headers["m1"].Subject)
	assert.Equal(t, "Ana <ana@example.com>", headers["m2"].Sender)
	assert.Equal(t, time.UnixMilli(1700000000000), headers["m1"].Received)

	_, err = c.Headers(context.Background(), []string{"m3"})
	assert.Error(t, err)
}

func TestClient_Folders(t *testing.T) {
	c, _ := newTestClient(t)
	folders, err := c.Folders(context.Background())
	require.NoError(t, err)
	var names []string
	for _, f := range folders {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Family", "INBOX", "receipts"}, names)
}

func TestChunks(t *testing.T) {
	assert.Nil(t, chunks(nil, 2))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, chunks([]string{"a", "b", "c"}, 2))
}
