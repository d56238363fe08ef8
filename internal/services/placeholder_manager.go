package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajramos/leavebehind/internal/operation"
)

// ItemState is the lifecycle state of a list item
type ItemState int32

const (
	StateNormal ItemState = iota
	StatePlaceholder
	StateCommitted
)

func (s ItemState) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StatePlaceholder:
		return "placeholder"
	case StateCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// ListItem is one row of the list. Its position is reassigned on every
// refresh; its state is only changed by the PlaceholderManager.
type ListItem struct {
	id       string
	position atomic.Int64
	state    atomic.Int32
}

// NewListItem creates an item in the normal state
func NewListItem(id string, position int) *ListItem {
	it := &ListItem{id: id}
	it.position.Store(int64(position))
	return it
}

// ID returns the stable identity
func (it *ListItem) ID() string { return it.id }

// Position returns the current row index
func (it *ListItem) Position() int { return int(it.position.Load()) }

// State returns the lifecycle state
func (it *ListItem) State() ItemState { return ItemState(it.state.Load()) }

func (it *ListItem) setPosition(p int) { it.position.Store(int64(p)) }

func (it *ListItem) setState(s ItemState) { it.state.Store(int32(s)) }

// Payload carries the folder data of a ChangeFolder action
type Payload struct {
	Value   string
	Removed []string
}

// Placeholder pairs one item with the operation pending on it
type Placeholder struct {
	item    *ListItem
	op      operation.Operation
	groupID string
	payload Payload
	created time.Time

	// state is the single-owner transition flag: whoever swaps it away
	// from StatePlaceholder performs the terminal transition.
	state atomic.Int32
}

// Item returns the covered item
func (p *Placeholder) Item() *ListItem { return p.item }

// Op returns the pending operation
func (p *Placeholder) Op() operation.Operation { return p.op }

// GroupID returns the undo group the placeholder belongs to
func (p *Placeholder) GroupID() string { return p.groupID }

// State returns the placeholder's own state
func (p *Placeholder) State() ItemState { return ItemState(p.state.Load()) }

// Resolved reports whether the placeholder was committed or cancelled
func (p *Placeholder) Resolved() bool { return p.State() != StatePlaceholder }

// Undo returns the persistable form of the placeholder
func (p *Placeholder) Undo() operation.UndoData {
	return operation.UndoData{GroupID: p.groupID, Op: p.op, ItemID: p.item.ID(), Position: p.item.Position()}
}

const defaultMutationTimeout = 30 * time.Second

// PlaceholderManager owns every live placeholder. Transitions are serialized
// by its mutex; the store mutation of a commit runs on its own goroutine.
type PlaceholderManager struct {
	mu      sync.Mutex
	store   DataStore
	surface PresentationSurface
	events  *EventBus
	active  map[string]*Placeholder
	folder  string

	onFailure FailureHandler
	timeout   time.Duration
	inflight  sync.WaitGroup
	logger    *log.Logger // Optional - for debug logging
}

// NewPlaceholderManager creates a manager over a store and a surface
func NewPlaceholderManager(store DataStore, surface PresentationSurface) *PlaceholderManager {
	return &PlaceholderManager{
		store:   store,
		surface: surface,
		active:  make(map[string]*Placeholder),
		timeout: defaultMutationTimeout,
	}
}

// SetLogger sets the logger for debug output
func (m *PlaceholderManager) SetLogger(logger *log.Logger) {
	m.logger = logger
}

// SetEvents sets the bus transitions are published on
func (m *PlaceholderManager) SetEvents(bus *EventBus) {
	m.events = bus
}

// SetFailureHandler registers the receiver of rejected commits
func (m *PlaceholderManager) SetFailureHandler(h FailureHandler) {
	m.mu.Lock()
	m.onFailure = h
	m.mu.Unlock()
}

// SetFolder records the folder mutations are issued from
func (m *PlaceholderManager) SetFolder(folder string) {
	m.mu.Lock()
	m.folder = folder
	m.mu.Unlock()
}

// SetMutationTimeout bounds each store call
func (m *PlaceholderManager) SetMutationTimeout(d time.Duration) {
	if d > 0 {
		m.timeout = d
	}
}

func (m *PlaceholderManager) logf(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

// Begin puts item behind a placeholder for op. If the item already has a live
// placeholder that one is returned and created is false.
func (m *PlaceholderManager) Begin(item *ListItem, op operation.Operation) (p *Placeholder, created bool) {
	m.mu.Lock()
	if existing, ok := m.active[item.ID()]; ok {
		m.mu.Unlock()
		return existing, false
	}
	m.mu.Unlock()

	ps := m.BeginGroup([]*ListItem{item}, op, "", Payload{})
	if len(ps) == 0 {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.active[item.ID()], false
	}
	return ps[0], true
}

// BeginGroup puts every item behind a placeholder sharing op and groupID.
// Items that already have a live placeholder or were committed are skipped;
// only newly created placeholders are returned.
func (m *PlaceholderManager) BeginGroup(items []*ListItem, op operation.Operation, groupID string, payload Payload) []*Placeholder {
	now := time.Now()
	m.mu.Lock()
	created := make([]*Placeholder, 0, len(items))
	for _, item := range items {
		if _, ok := m.active[item.ID()]; ok || item.State() == StateCommitted {
			continue
		}
		p := &Placeholder{item: item, op: op, groupID: groupID, payload: payload, created: now}
		p.state.Store(int32(StatePlaceholder))
		item.setState(StatePlaceholder)
		m.active[item.ID()] = p
		created = append(created, p)
		if m.surface != nil {
			m.surface.ShowPlaceholder(item.Position(), op.Description())
		}
	}
	m.mu.Unlock()

	if len(created) > 0 {
		m.logf("begin: %s on %d item(s) group=%s", op.Kind(), len(created), groupID)
		m.events.Publish(Event{Kind: EventPlaceholderShown, ItemIDs: placeholderIDs(created), GroupID: groupID, Op: op})
	}
	return created
}

// Cancel restores the item of p. It reports false if p was already resolved.
func (m *PlaceholderManager) Cancel(p *Placeholder) bool {
	return m.CancelAll([]*Placeholder{p})
}

// CancelAll restores every placeholder of ps, or none of them if any one was
// already resolved.
func (m *PlaceholderManager) CancelAll(ps []*Placeholder) bool {
	if len(ps) == 0 {
		return false
	}
	m.mu.Lock()
	for _, p := range ps {
		if p == nil || p.State() != StatePlaceholder {
			m.mu.Unlock()
			m.logf("cancel: %v", ErrInvalidTransition)
			return false
		}
	}
	for _, p := range ps {
		p.state.Store(int32(StateNormal))
		p.item.setState(StateNormal)
		delete(m.active, p.item.ID())
		if m.surface != nil {
			m.surface.RestoreRow(p.item.Position())
		}
	}
	m.mu.Unlock()

	m.logf("cancel: %s on %d item(s)", ps[0].op.Kind(), len(ps))
	m.events.Publish(Event{Kind: EventPlaceholderCancelled, ItemIDs: placeholderIDs(ps), GroupID: ps[0].groupID, Op: ps[0].op})
	return true
}

// Commit applies p. It reports false if p was already resolved.
func (m *PlaceholderManager) Commit(p *Placeholder) bool {
	return m.CommitAll([]*Placeholder{p}) == 1
}

// CommitAll commits every placeholder of ps that is still pending and returns
// how many it committed. Placeholders sharing an operation kind and folder
// payload are sent to the store as one mutation.
func (m *PlaceholderManager) CommitAll(ps []*Placeholder) int {
	m.mu.Lock()
	var won []*Placeholder
	for _, p := range ps {
		if p == nil || !p.state.CompareAndSwap(int32(StatePlaceholder), int32(StateCommitted)) {
			continue
		}
		p.item.setState(StateCommitted)
		delete(m.active, p.item.ID())
		won = append(won, p)
	}
	if len(won) == 0 {
		m.mu.Unlock()
		return 0
	}

	for _, g := range groupByBatch(won) {
		m.issue(g[0].op, Mutation{
			ItemIDs: placeholderIDs(g),
			Action:  g[0].op.Kind(),
			Folder:  m.folder,
			Value:   g[0].payload.Value,
			Removed: g[0].payload.Removed,
		})
	}

	// highest position first so earlier removals do not shift later ones
	rows := make([]int, 0, len(won))
	for _, p := range won {
		rows = append(rows, p.item.Position())
	}
	sort.Sort(sort.Reverse(sort.IntSlice(rows)))
	if m.surface != nil {
		for _, row := range rows {
			m.surface.RemoveRow(row)
		}
	}
	m.mu.Unlock()

	m.logf("commit: %s on %d item(s)", won[0].op.Kind(), len(won))
	m.events.Publish(Event{Kind: EventPlaceholderCommitted, ItemIDs: placeholderIDs(won), GroupID: won[0].groupID, Op: won[0].op})
	return len(won)
}

// Apply sends a mutation that needs no placeholder, e.g. a relabel that keeps
// the items in the current folder
func (m *PlaceholderManager) Apply(op operation.Operation, mut Mutation) {
	m.mu.Lock()
	if mut.Folder == "" {
		mut.Folder = m.folder
	}
	m.issue(op, mut)
	m.mu.Unlock()
}

// issue starts the store call. Must be called with m.mu held.
func (m *PlaceholderManager) issue(op operation.Operation, mut Mutation) {
	if m.store == nil {
		return
	}
	onFailure := m.onFailure
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		err := m.store.ApplyMutation(ctx, mut)
		if err == nil {
			return
		}
		err = fmt.Errorf("%w: %s on %d item(s): %v", ErrStoreMutationFailed, mut.Action, len(mut.ItemIDs), err)
		m.logf("commit: %v", err)
		failure := MutationFailure{Op: op, Mutation: mut, Err: err}
		if onFailure != nil {
			onFailure(failure)
		}
		m.events.Publish(Event{Kind: EventMutationFailed, ItemIDs: mut.ItemIDs, Op: op, Err: err})
	}()
}

// Active returns the live placeholder for an item id
func (m *PlaceholderManager) Active(itemID string) (*Placeholder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.active[itemID]
	return p, ok
}

// ActiveCount returns the number of live placeholders
func (m *PlaceholderManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Wait blocks until every issued store mutation has returned
func (m *PlaceholderManager) Wait() {
	m.inflight.Wait()
}

func placeholderIDs(ps []*Placeholder) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.item.ID())
	}
	return out
}

// batchKey identifies the placeholders one mutation can carry
type batchKey struct {
	kind    operation.Kind
	value   string
	removed string
}

func keyOf(p *Placeholder) batchKey {
	return batchKey{
		kind:    p.op.Kind(),
		value:   p.payload.Value,
		removed: strings.Join(p.payload.Removed, "\x00"),
	}
}

func groupByBatch(ps []*Placeholder) [][]*Placeholder {
	var order []batchKey
	groups := make(map[batchKey][]*Placeholder)
	for _, p := range ps {
		k := keyOf(p)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], p)
	}
	out := make([][]*Placeholder, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k])
	}
	return out
}
