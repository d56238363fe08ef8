package gmail

import (
	"context"
	"fmt"
	"log"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ajramos/leavebehind/internal/operation"
	"github.com/ajramos/leavebehind/internal/recent"
	"github.com/ajramos/leavebehind/internal/services"
	"google.golang.org/api/gmail/v1"
)

const (
	user = "me"

	// batchLimit is the most ids one batchModify or batchDelete call accepts
	batchLimit = 1000
	// defaultPageSize bounds how many message ids a refresh lists
	defaultPageSize = 100
	defaultWorkers  = 10
	maxWorkers      = 15
)

// Client wraps the gmail.Service and serves it as a services.Mailbox
type Client struct {
	Service *gmail.Service

	mu      sync.RWMutex
	folder  string
	maxList int64
	workers int
	logger  *log.Logger
}

// NewClient creates a new Gmail client listing folder
func NewClient(service *gmail.Service, folder string) *Client {
	return &Client{
		Service: service,
		folder:  folder,
		maxList: defaultPageSize,
		workers: defaultWorkers,
		logger:  log.New(log.Writer(), "[gmail] ", log.LstdFlags),
	}
}

var _ services.Mailbox = (*Client)(nil)

// SetLogger sets the logger for the client
func (c *Client) SetLogger(logger *log.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetMaxList bounds how many message ids Refresh returns
func (c *Client) SetMaxList(n int64) {
	if n > 0 {
		c.maxList = n
	}
}

// SetWorkers sets how many header requests run in parallel
func (c *Client) SetWorkers(n int) {
	if n <= 0 {
		n = defaultWorkers
	}
	if n > maxWorkers {
		n = maxWorkers
	}
	c.workers = n
}

// SetFolder changes the label Refresh lists
func (c *Client) SetFolder(folder string) {
	c.mu.Lock()
	c.folder = folder
	c.mu.Unlock()
}

// Folder returns the label Refresh lists
func (c *Client) Folder() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.folder
}

func (c *Client) ready() error {
	if c == nil || c.Service == nil {
		return fmt.Errorf("gmail client not initialized")
	}
	return nil
}

// Refresh lists the ids of the current label, newest first
func (c *Client) Refresh(ctx context.Context) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	folder := c.Folder()
	var ids []string
	pageToken := ""
	for int64(len(ids)) < c.maxList {
		call := c.Service.Users.Messages.List(user).LabelIds(folder).MaxResults(c.maxList - int64(len(ids))).Context(ctx)
		// Align with Gmail Web: trash and spam only show up when asked for
		if folder != operation.FolderTrash && folder != operation.FolderSpam {
			call = call.Q("-in:spam -in:trash")
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("could not list messages: %w", err)
		}
		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}
		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}
	return ids, nil
}

// LookupBatchAction resolves a menu action id
func (c *Client) LookupBatchAction(actionID string) (operation.Kind, error) {
	kind, ok := operation.ParseKind(actionID)
	if !ok {
		return "", fmt.Errorf("unknown batch action %q", actionID)
	}
	return kind, nil
}

// ApplyMutation sends m to Gmail. Deletes go through the trash endpoint, a
// delete from the trash removes the messages for good, everything else is a
// label batch modify.
func (c *Client) ApplyMutation(ctx context.Context, m services.Mutation) error {
	if err := c.ready(); err != nil {
		return err
	}
	if len(m.ItemIDs) == 0 {
		return nil
	}

	switch {
	case m.Action == operation.Delete && m.Folder == operation.FolderTrash:
		for _, chunk := range chunks(m.ItemIDs, batchLimit) {
			req := &gmail.BatchDeleteMessagesRequest{Ids: chunk}
			if err := c.Service.Users.Messages.BatchDelete(user, req).Context(ctx).Do(); err != nil {
				return fmt.Errorf("could not delete messages: %w", err)
			}
		}
		return nil
	case m.Action == operation.Delete:
		for _, id := range m.ItemIDs {
			if _, err := c.Service.Users.Messages.Trash(user, id).Context(ctx).Do(); err != nil {
				return fmt.Errorf("could not move %s to trash: %w", id, err)
			}
		}
		return nil
	}

	added := splitValue(m.Value)
	delta := operation.Effect(m.Action, m.Folder, added, m.Removed)
	req := &gmail.BatchModifyMessagesRequest{
		AddLabelIds:    apiLabels(delta.Add),
		RemoveLabelIds: apiLabels(delta.Remove),
	}
	if len(req.AddLabelIds) == 0 && len(req.RemoveLabelIds) == 0 {
		return nil
	}
	for _, chunk := range chunks(m.ItemIDs, batchLimit) {
		req.Ids = chunk
		if err := c.Service.Users.Messages.BatchModify(user, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("could not modify labels: %w", err)
		}
	}
	return nil
}

// Headers fetches the metadata of ids with a bounded worker pool
func (c *Client) Headers(ctx context.Context, ids []string) (map[string]services.Header, error) {
	out := make(map[string]services.Header, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if err := c.ready(); err != nil {
		return nil, err
	}

	type result struct {
		header services.Header
		err    error
	}
	jobs := make(chan string)
	results := make(chan result, len(ids))

	var wg sync.WaitGroup
	workers := c.workers
	if workers > len(ids) {
		workers = len(ids)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				msg, err := c.Service.Users.Messages.Get(user, id).
					Format("metadata").MetadataHeaders("From", "Subject", "Date").
					Context(ctx).Do()
				if err != nil {
					results <- result{err: fmt.Errorf("could not get message %s: %w", id, err)}
					continue
				}
				results <- result{header: headerOf(msg)}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, id := range ids {
			select {
			case jobs <- id:
			case <-ctx.Done():
				return
			}
		}
	}()
	wg.Wait()
	close(results)

	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			c.logger.Printf("headers: %v", r.err)
			continue
		}
		out[r.header.ID] = r.header
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Folders lists the account's labels
func (c *Client) Folders(ctx context.Context) ([]recent.Entry, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	res, err := c.Service.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("could not list labels: %w", err)
	}
	out := make([]recent.Entry, 0, len(res.Labels))
	for _, l := range res.Labels {
		if hiddenLabels[l.Id] {
			continue
		}
		out = append(out, recent.Entry{ID: l.Id, Name: l.Name})
	}
	sort.Slice(out, func(i, j int) bool { return recent.ByNameIgnoreCase(out[i], out[j]) })
	return out, nil
}

// hiddenLabels are system labels that are never a list to open
var hiddenLabels = map[string]bool{
	"UNREAD": true, "DRAFT": true, "SENT": true, "CHAT": true,
	"CATEGORY_PERSONAL": true, "CATEGORY_SOCIAL": true, "CATEGORY_PROMOTIONS": true,
	"CATEGORY_UPDATES": true, "CATEGORY_FORUMS": true,
	"IMPORTANT": true, "YELLOW_STAR": true,
}

// apiLabels drops folders Gmail has no label for. Muting is not exposed by
// the API, so a mute only takes the conversation out of the inbox.
func apiLabels(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id == operation.FolderMuted {
			continue
		}
		out = append(out, id)
	}
	return out
}

func headerOf(msg *gmail.Message) services.Header {
	return services.Header{
		ID:       msg.Id,
		Sender:   extractHeader(msg, "From"),
		Subject:  extractHeader(msg, "Subject"),
		Snippet:  msg.Snippet,
		Received: extractDate(msg),
		Labels:   extractLabels(msg),
	}
}

func chunks(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func splitValue(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Helper functions
func extractHeader(msg *gmail.Message, name string) string {
	if msg.Payload == nil || msg.Payload.Headers == nil {
		return ""
	}

	for _, header := range msg.Payload.Headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}

	return ""
}

func extractDate(msg *gmail.Message) time.Time {
	if msg.InternalDate > 0 {
		return time.UnixMilli(msg.InternalDate)
	}
	dateStr := extractHeader(msg, "Date")
	if dateStr == "" {
		return time.Time{}
	}
	if t, err := mail.ParseDate(dateStr); err == nil {
		return t
	}
	return time.Time{}
}

func extractLabels(msg *gmail.Message) []string {
	if msg.LabelIds == nil {
		return []string{}
	}
	return msg.LabelIds
}
