package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ajramos/leavebehind/internal/labels"
	"github.com/ajramos/leavebehind/internal/operation"
	"github.com/ajramos/leavebehind/internal/recent"
	"github.com/google/uuid"
)

// DefaultUndoWindow is how long a placeholder waits before it commits
const DefaultUndoWindow = 5 * time.Second

// UndoGroup is one undo affordance covering every placeholder of a single
// dismissal or bulk command
type UndoGroup struct {
	id      string
	op      operation.Operation
	itemIDs []string
	created time.Time
	single  bool

	mu           sync.Mutex
	placeholders []*Placeholder
}

// ID returns the group id
func (g *UndoGroup) ID() string { return g.id }

// Op returns the shared operation
func (g *UndoGroup) Op() operation.Operation { return g.op }

// Description returns the text shown on the undo affordance
func (g *UndoGroup) Description() string { return g.op.Description() }

// Created returns when the group was started
func (g *UndoGroup) Created() time.Time { return g.created }

// ItemIDs returns the covered items
func (g *UndoGroup) ItemIDs() []string {
	return append([]string(nil), g.itemIDs...)
}

// Placeholders returns the live placeholders of the group
func (g *UndoGroup) Placeholders() []*Placeholder {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Placeholder(nil), g.placeholders...)
}

func (g *UndoGroup) attach(ps []*Placeholder) {
	g.mu.Lock()
	g.placeholders = ps
	g.mu.Unlock()
}

// Option configures a ListCoordinator
type Option func(*ListCoordinator)

// WithUndoWindow sets the delay before automatic commit
func WithUndoWindow(d time.Duration) Option {
	return func(c *ListCoordinator) {
		if d > 0 {
			c.undoWindow = d
		}
	}
}

// WithScheduler replaces the timer source
func WithScheduler(s Scheduler) Option {
	return func(c *ListCoordinator) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithDispatcher routes timer callbacks onto the list's event loop
func WithDispatcher(d Dispatcher) Option {
	return func(c *ListCoordinator) {
		if d != nil {
			c.dispatch = d
		}
	}
}

// WithSingleLeaveBehind makes a new dismissal commit every older dismissal
// right away. Bulk groups are left alone.
func WithSingleLeaveBehind(on bool) Option {
	return func(c *ListCoordinator) {
		c.singleLeaveBehind = on
	}
}

// WithFolder sets the folder the list starts in
func WithFolder(folder string) Option {
	return func(c *ListCoordinator) {
		c.folder = folder
	}
}

// WithRecent wires the quick-pick folder list
func WithRecent(r *RecentFolderService) Option {
	return func(c *ListCoordinator) {
		c.recent = r
	}
}

// ListCoordinator turns dismissals and bulk commands into placeholders,
// schedules their commit and keeps list positions in step with the store.
//
// c.mu is never held while calling into the PlaceholderManager.
type ListCoordinator struct {
	mu        sync.Mutex
	manager   *PlaceholderManager
	store     DataStore
	events    *EventBus
	recent    *RecentFolderService
	scheduler Scheduler
	dispatch  Dispatcher

	undoWindow        time.Duration
	singleLeaveBehind bool
	folder            string

	items     map[string]*ListItem
	order     []string
	committed map[string]struct{}

	groups     map[string]*UndoGroup
	groupOrder []string
	timers     map[string]Timer
	itemGroup  map[string]*UndoGroup

	dialog *DialogGuard
	torn   bool
	logger *log.Logger // Optional - for debug logging
}

// NewListCoordinator creates a coordinator over store and surface
func NewListCoordinator(store DataStore, surface PresentationSurface, opts ...Option) *ListCoordinator {
	c := &ListCoordinator{
		store:      store,
		events:     NewEventBus(),
		scheduler:  realScheduler{},
		dispatch:   directDispatch,
		undoWindow: DefaultUndoWindow,
		items:      make(map[string]*ListItem),
		committed:  make(map[string]struct{}),
		groups:     make(map[string]*UndoGroup),
		timers:     make(map[string]Timer),
		itemGroup:  make(map[string]*UndoGroup),
		dialog:     &DialogGuard{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.manager = NewPlaceholderManager(store, surface)
	c.manager.SetEvents(c.events)
	c.manager.SetFolder(c.folder)
	return c
}

// SetLogger sets the logger for debug output
func (c *ListCoordinator) SetLogger(logger *log.Logger) {
	c.logger = logger
	c.manager.SetLogger(logger)
}

// SetFailureHandler registers the receiver of rejected commits
func (c *ListCoordinator) SetFailureHandler(h FailureHandler) {
	c.manager.SetFailureHandler(h)
}

func (c *ListCoordinator) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// Events returns the bus list changes are published on
func (c *ListCoordinator) Events() *EventBus { return c.events }

// Manager returns the underlying placeholder manager
func (c *ListCoordinator) Manager() *PlaceholderManager { return c.manager }

// Dialog returns the guard of the coordinator's modal dialogs
func (c *ListCoordinator) Dialog() *DialogGuard { return c.dialog }

// Folder returns the folder the list is showing
func (c *ListCoordinator) Folder() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.folder
}

// Sync pulls the latest ordering from the store
func (c *ListCoordinator) Sync(ctx context.Context) error {
	ids, err := c.store.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh list: %w", err)
	}
	c.RefreshPositions(ids)
	return nil
}

// Items returns the list in display order
func (c *ListCoordinator) Items() []*ListItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ListItem, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// Item looks up a tracked item
func (c *ListCoordinator) Item(id string) (*ListItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[id]
	return it, ok
}

// Pending returns the unresolved undo groups, oldest first
func (c *ListCoordinator) Pending() []*UndoGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*UndoGroup, 0, len(c.groupOrder))
	for _, id := range c.groupOrder {
		out = append(out, c.groups[id])
	}
	return out
}

// GroupOf returns the pending group covering an item
func (c *ListCoordinator) GroupOf(itemID string) (*UndoGroup, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.itemGroup[itemID]
	return g, ok
}

// Dismiss deletes one item behind a placeholder. Dismissing an item that is
// already pending returns its existing group.
func (c *ListCoordinator) Dismiss(itemID string) (*UndoGroup, error) {
	return c.start([]string{itemID}, operation.Delete, Payload{}, true)
}

// BulkApply applies kind to every listed item as one undoable group. Items
// that are already pending are skipped.
func (c *ListCoordinator) BulkApply(itemIDs []string, kind operation.Kind) (*UndoGroup, error) {
	if !kind.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionKind, kind)
	}
	return c.start(itemIDs, kind, Payload{}, false)
}

// BulkApplyAction resolves a store-defined batch action id and applies it
func (c *ListCoordinator) BulkApplyAction(actionID string, itemIDs []string) (*UndoGroup, error) {
	kind, err := c.store.LookupBatchAction(actionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownActionKind, actionID, err)
	}
	return c.BulkApply(itemIDs, kind)
}

// ApplyLabelChanges submits a folder picker's change set. When the change
// takes the items out of the current folder they go behind an undoable
// placeholder; otherwise the mutation is sent directly and no group is
// returned.
func (c *ListCoordinator) ApplyLabelChanges(ctx context.Context, itemIDs []string, agg *labels.Aggregator) (*UndoGroup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if agg == nil || !agg.Dirty() {
		return nil, nil
	}
	if len(itemIDs) == 0 {
		return nil, ErrNoItems
	}
	added, removed := agg.Added(), agg.Removed()
	payload := Payload{Value: agg.Serialize(), Removed: removed}

	folder := c.Folder()
	if operation.Effect(operation.ChangeFolder, folder, added, removed).LeavesFolder(folder) {
		return c.start(itemIDs, operation.ChangeFolder, payload, false)
	}

	op, err := operation.New(operation.ChangeFolder, len(itemIDs))
	if err != nil {
		return nil, err
	}
	c.manager.Apply(op, Mutation{
		ItemIDs: append([]string(nil), itemIDs...),
		Action:  operation.ChangeFolder,
		Value:   payload.Value,
		Removed: removed,
	})
	c.logf("labels: changed %d item(s) in place: +[%s] -%v", len(itemIDs), payload.Value, removed)
	return nil, nil
}

// OpenLabelEditor starts a folder picker over itemIDs. Only one picker may be
// open per coordinator.
func (c *ListCoordinator) OpenLabelEditor(itemIDs []string, present, known []string, single bool) (*LabelEditSession, error) {
	if len(itemIDs) == 0 {
		return nil, ErrNoItems
	}
	if !c.dialog.TryShow() {
		return nil, ErrDialogAlreadyShown
	}
	agg := labels.NewAggregator(present)
	if single {
		agg = labels.NewSingleAggregator(present, known)
	}
	return &LabelEditSession{
		coordinator: c,
		itemIDs:     append([]string(nil), itemIDs...),
		agg:         agg,
	}, nil
}

func (c *ListCoordinator) start(ids []string, kind operation.Kind, payload Payload, single bool) (*UndoGroup, error) {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return nil, ErrTornDown
	}
	if single && len(ids) == 1 {
		if g, ok := c.itemGroup[ids[0]]; ok {
			c.mu.Unlock()
			return g, nil
		}
	}

	items := make([]*ListItem, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		it, ok := c.items[id]
		if !ok {
			if single {
				c.mu.Unlock()
				return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
			}
			continue
		}
		if _, pending := c.itemGroup[id]; pending || it.State() != StateNormal {
			continue
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		c.mu.Unlock()
		return nil, ErrNoItems
	}

	op, err := operation.New(kind, len(items))
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	var superseded []*Placeholder
	if c.singleLeaveBehind && single {
		for _, gid := range append([]string(nil), c.groupOrder...) {
			g := c.groups[gid]
			if g.single {
				superseded = append(superseded, g.Placeholders()...)
				c.detachLocked(g)
			}
		}
	}

	g := &UndoGroup{id: uuid.NewString(), op: op, created: time.Now(), single: single}
	for _, it := range items {
		g.itemIDs = append(g.itemIDs, it.ID())
		c.itemGroup[it.ID()] = g
	}
	c.mu.Unlock()

	if len(superseded) > 0 {
		c.manager.CommitAll(superseded)
	}

	ps := c.manager.BeginGroup(items, op, g.id, payload)
	g.attach(ps)

	c.mu.Lock()
	if len(ps) == 0 {
		for _, id := range g.itemIDs {
			delete(c.itemGroup, id)
		}
		c.mu.Unlock()
		c.reindex()
		return nil, ErrNoItems
	}
	if c.torn {
		for _, id := range g.itemIDs {
			delete(c.itemGroup, id)
		}
		c.mu.Unlock()
		c.manager.CommitAll(ps)
		c.reindex()
		return g, nil
	}
	c.groups[g.id] = g
	c.groupOrder = append(c.groupOrder, g.id)
	c.timers[g.id] = c.scheduler.AfterFunc(c.undoWindow, func() {
		c.dispatch(func() { c.expire(g.id) })
	})
	c.mu.Unlock()

	if len(superseded) > 0 {
		c.reindex()
	}
	c.logf("group %s: %s pending for %s", g.id, op.Description(), c.undoWindow)
	return g, nil
}

func (c *ListCoordinator) expire(groupID string) {
	c.mu.Lock()
	g, ok := c.groups[groupID]
	c.mu.Unlock()
	if !ok {
		return
	}
	c.Commit(g)
}

// detachLocked forgets g and stops its timer. Must be called with c.mu held.
func (c *ListCoordinator) detachLocked(g *UndoGroup) {
	if t, ok := c.timers[g.id]; ok {
		t.Stop()
		delete(c.timers, g.id)
	}
	delete(c.groups, g.id)
	for i, id := range c.groupOrder {
		if id == g.id {
			c.groupOrder = append(c.groupOrder[:i], c.groupOrder[i+1:]...)
			break
		}
	}
	for _, id := range g.itemIDs {
		if c.itemGroup[id] == g {
			delete(c.itemGroup, id)
		}
	}
}

// Undo cancels every placeholder of g. If any member was already resolved
// nothing is restored and the remaining members are committed instead.
func (c *ListCoordinator) Undo(g *UndoGroup) error {
	if g == nil {
		return ErrInvalidTransition
	}
	c.mu.Lock()
	if _, ok := c.groups[g.id]; !ok {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	c.detachLocked(g)
	c.mu.Unlock()

	ps := g.Placeholders()
	if c.manager.CancelAll(ps) {
		c.logf("group %s: undone", g.id)
		return nil
	}
	if c.manager.CommitAll(ps) > 0 {
		c.reindex()
	}
	return ErrInvalidTransition
}

// UndoLast undoes the most recent pending group
func (c *ListCoordinator) UndoLast() (*UndoGroup, error) {
	c.mu.Lock()
	if len(c.groupOrder) == 0 {
		c.mu.Unlock()
		return nil, ErrNoItems
	}
	g := c.groups[c.groupOrder[len(c.groupOrder)-1]]
	c.mu.Unlock()
	return g, c.Undo(g)
}

// Commit finalizes g without waiting for its undo window. It reports false
// when g was already resolved.
func (c *ListCoordinator) Commit(g *UndoGroup) bool {
	if g == nil {
		return false
	}
	c.mu.Lock()
	if _, ok := c.groups[g.id]; !ok {
		c.mu.Unlock()
		return false
	}
	c.detachLocked(g)
	c.mu.Unlock()

	n := c.manager.CommitAll(g.Placeholders())
	if n > 0 {
		c.reindex()
	}
	return n > 0
}

// CommitPending finalizes every pending group
func (c *ListCoordinator) CommitPending() int {
	c.mu.Lock()
	ps := c.drainLocked()
	c.mu.Unlock()
	n := c.manager.CommitAll(ps)
	if n > 0 {
		c.reindex()
	}
	return n
}

func (c *ListCoordinator) drainLocked() []*Placeholder {
	var ps []*Placeholder
	for _, gid := range append([]string(nil), c.groupOrder...) {
		g := c.groups[gid]
		ps = append(ps, g.Placeholders()...)
		c.detachLocked(g)
	}
	return ps
}

// Teardown commits every pending group immediately and refuses new work.
// Abandoning the placeholders would leave the store out of step with what
// the user saw.
func (c *ListCoordinator) Teardown() {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	c.torn = true
	ps := c.drainLocked()
	c.mu.Unlock()

	if n := c.manager.CommitAll(ps); n > 0 {
		c.logf("teardown: committed %d pending item(s)", n)
		c.reindex()
	}
}

// Close tears the list down and waits for in-flight store mutations
func (c *ListCoordinator) Close() {
	c.Teardown()
	c.manager.Wait()
}

// Wait blocks until every issued store mutation has returned
func (c *ListCoordinator) Wait() {
	c.manager.Wait()
}

// ChangeFolder commits pending work, switches the list to entry and reloads
// it. The folder is also recorded in the recent list when one is wired.
func (c *ListCoordinator) ChangeFolder(ctx context.Context, entry recent.Entry) ([]recent.Entry, error) {
	c.CommitPending()

	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return nil, ErrTornDown
	}
	c.folder = entry.ID
	c.items = make(map[string]*ListItem)
	c.order = nil
	c.committed = make(map[string]struct{})
	c.mu.Unlock()
	c.manager.SetFolder(entry.ID)

	var recents []recent.Entry
	if c.recent != nil {
		var err error
		recents, err = c.recent.ChangeCurrentFolder(ctx, entry)
		if err != nil {
			c.logf("recent folders: %v", err)
		}
	}
	if err := c.Sync(ctx); err != nil {
		return recents, err
	}
	return recents, nil
}

// RefreshPositions applies a new ordering from the store. Items are matched
// by id. Pending items keep their placeholder even when the snapshot moves
// or omits them, and ids already committed here are ignored until the store
// stops reporting them.
func (c *ListCoordinator) RefreshPositions(ordering []string) {
	c.mu.Lock()
	seen := make(map[string]bool, len(ordering))
	next := make([]string, 0, len(ordering))
	var stale []string
	for _, id := range ordering {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, done := c.committed[id]; done {
			stale = append(stale, id)
			continue
		}
		next = append(next, id)
	}
	for id := range c.committed {
		if !seen[id] {
			delete(c.committed, id)
		}
	}

	for _, id := range c.order {
		if seen[id] {
			continue
		}
		it := c.items[id]
		if _, pending := c.itemGroup[id]; !pending && it.State() != StatePlaceholder {
			continue
		}
		pos := it.Position()
		if pos > len(next) {
			pos = len(next)
		}
		next = append(next, "")
		copy(next[pos+1:], next[pos:])
		next[pos] = id
	}

	items := make(map[string]*ListItem, len(next))
	for i, id := range next {
		it, ok := c.items[id]
		if ok {
			it.setPosition(i)
		} else {
			it = NewListItem(id, i)
		}
		items[id] = it
	}
	c.items = items
	c.order = next
	ids := append([]string(nil), next...)
	c.mu.Unlock()

	if len(stale) > 0 {
		c.logf("refresh: %v: ignoring %v", ErrStaleIdentity, stale)
	}
	c.events.Publish(Event{Kind: EventPositionsChanged, ItemIDs: ids})
}

// reindex drops committed rows and renumbers what is left
func (c *ListCoordinator) reindex() {
	c.mu.Lock()
	next := c.order[:0:0]
	for _, id := range c.order {
		it := c.items[id]
		if it.State() == StateCommitted {
			c.committed[id] = struct{}{}
			delete(c.items, id)
			continue
		}
		it.setPosition(len(next))
		next = append(next, id)
	}
	c.order = next
	ids := append([]string(nil), next...)
	c.mu.Unlock()

	c.events.Publish(Event{Kind: EventPositionsChanged, ItemIDs: ids})
}

// SaveState hands the pending placeholders over to save as an encoded blob
// that RestoreState can rebuild in a later coordinator. The list is torn
// down without committing the saved groups. Folder changes are committed
// instead of saved because their folder payload is not part of the
// encoding. If the blob cannot be encoded or save fails, the saved groups
// are committed as Teardown would.
func (c *ListCoordinator) SaveState(save func(data []byte) error) error {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return ErrTornDown
	}
	c.torn = true
	var (
		saved     []operation.UndoData
		handedOff []*Placeholder
		finalize  []*Placeholder
	)
	for _, gid := range append([]string(nil), c.groupOrder...) {
		g := c.groups[gid]
		ps := g.Placeholders()
		c.detachLocked(g)
		if g.op.Kind() == operation.ChangeFolder {
			finalize = append(finalize, ps...)
			continue
		}
		for _, p := range ps {
			if !p.Resolved() {
				saved = append(saved, p.Undo())
				handedOff = append(handedOff, p)
			}
		}
	}
	c.mu.Unlock()

	if c.manager.CommitAll(finalize) > 0 {
		c.reindex()
	}

	data, err := operation.EncodeList(saved)
	if err != nil {
		err = fmt.Errorf("%w: encode undo state: %v", ErrPersistence, err)
	} else if save != nil {
		if serr := save(data); serr != nil {
			err = fmt.Errorf("%w: save undo state: %v", ErrPersistence, serr)
		}
	}
	if err != nil {
		n := c.manager.CommitAll(handedOff)
		c.logf("save state: %v; committed %d pending item(s)", err, n)
		if n > 0 {
			c.reindex()
		}
		return err
	}
	c.logf("save state: %d pending item(s)", len(saved))
	return nil
}

// RestoreState rebuilds placeholders saved by SaveState with a fresh undo
// window. Entries for items no longer in the list are dropped.
func (c *ListCoordinator) RestoreState(data []byte) ([]*UndoGroup, error) {
	list, err := operation.DecodeList(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode undo state: %v", ErrPersistence, err)
	}

	var order []string
	byGroup := make(map[string][]operation.UndoData)
	for _, u := range list {
		if _, ok := byGroup[u.GroupID]; !ok {
			order = append(order, u.GroupID)
		}
		byGroup[u.GroupID] = append(byGroup[u.GroupID], u)
	}

	var restored []*UndoGroup
	for _, gid := range order {
		entries := byGroup[gid]
		ids := make([]string, 0, len(entries))
		for _, u := range entries {
			ids = append(ids, u.ItemID)
		}
		g, err := c.start(ids, entries[0].Op.Kind(), Payload{}, false)
		if err != nil {
			if errors.Is(err, ErrTornDown) {
				return restored, err
			}
			c.logf("restore %s: %v", gid, err)
			continue
		}
		restored = append(restored, g)
	}
	return restored, nil
}
