package services

import (
	"sort"
	"sync"

	"github.com/ajramos/leavebehind/internal/operation"
)

// EventKind identifies a list change observers may want to redraw for
type EventKind int

const (
	EventPlaceholderShown EventKind = iota
	EventPlaceholderCancelled
	EventPlaceholderCommitted
	EventPositionsChanged
	EventMutationFailed
)

func (k EventKind) String() string {
	switch k {
	case EventPlaceholderShown:
		return "placeholder_shown"
	case EventPlaceholderCancelled:
		return "placeholder_cancelled"
	case EventPlaceholderCommitted:
		return "placeholder_committed"
	case EventPositionsChanged:
		return "positions_changed"
	case EventMutationFailed:
		return "mutation_failed"
	default:
		return "unknown"
	}
}

// Event is published after the state it describes has been applied
type Event struct {
	Kind    EventKind
	ItemIDs []string
	GroupID string
	Op      operation.Operation
	Err     error
}

// EventBus is a plain observer list
type EventBus struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

// NewEventBus creates an empty bus
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a func that removes it
func (b *EventBus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers e to every subscriber in subscription order, on the
// caller's goroutine. A nil bus drops the event.
func (b *EventBus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
