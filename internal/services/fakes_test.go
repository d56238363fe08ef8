package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ajramos/leavebehind/internal/operation"
	"github.com/ajramos/leavebehind/internal/recent"
	"github.com/stretchr/testify/mock"
)

// MockDataStore implements DataStore for testing
type MockDataStore struct {
	mock.Mock
}

func (m *MockDataStore) ApplyMutation(ctx context.Context, mut Mutation) error {
	args := m.Called(ctx, mut)
	return args.Error(0)
}

func (m *MockDataStore) Refresh(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDataStore) LookupBatchAction(actionID string) (operation.Kind, error) {
	args := m.Called(actionID)
	return args.Get(0).(operation.Kind), args.Error(1)
}

// mutatedItems returns how many ApplyMutation calls named each item
func (m *MockDataStore) mutatedItems() map[string]int {
	out := make(map[string]int)
	for _, call := range m.Calls {
		if call.Method != "ApplyMutation" {
			continue
		}
		for _, id := range call.Arguments.Get(1).(Mutation).ItemIDs {
			out[id]++
		}
	}
	return out
}

// recordingSurface records every presentation call as a short string
type recordingSurface struct {
	mu    sync.Mutex
	calls []string
}

func (s *recordingSurface) ShowPlaceholder(position int, description string) {
	s.record(fmt.Sprintf("show %d %s", position, description))
}

func (s *recordingSurface) RemoveRow(position int) {
	s.record(fmt.Sprintf("remove %d", position))
}

func (s *recordingSurface) RestoreRow(position int) {
	s.record(fmt.Sprintf("restore %d", position))
}

func (s *recordingSurface) MeasureHeight(content string) int { return 1 }

func (s *recordingSurface) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *recordingSurface) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// fakeScheduler hands out timers that only fire when told to
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{d: d, f: f}
	s.mu.Lock()
	s.timers = append(s.timers, t)
	s.mu.Unlock()
	return t
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.mu.Unlock()
	t.f()
}

func (s *fakeScheduler) fireAll() {
	s.mu.Lock()
	timers := append([]*fakeTimer(nil), s.timers...)
	s.mu.Unlock()
	for _, t := range timers {
		t.fire()
	}
}

func (s *fakeScheduler) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		t.mu.Lock()
		if !t.stopped && !t.fired {
			n++
		}
		t.mu.Unlock()
	}
	return n
}

// memoryPersister is an in-memory recent.Persister
type memoryPersister struct {
	mu      sync.Mutex
	entries []recent.Entry
	saves   int
	err     error
}

func (p *memoryPersister) Load(ctx context.Context) ([]recent.Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return append([]recent.Entry(nil), p.entries...), nil
}

func (p *memoryPersister) Save(ctx context.Context, entries []recent.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	if p.err != nil {
		return p.err
	}
	p.entries = append([]recent.Entry(nil), entries...)
	return nil
}

func newTestCoordinator(t *testing.T, ids []string, opts ...Option) (*ListCoordinator, *MockDataStore, *recordingSurface, *fakeScheduler) {
	t.Helper()
	store := &MockDataStore{}
	surface := &recordingSurface{}
	sched := &fakeScheduler{}
	opts = append([]Option{WithScheduler(sched)}, opts...)
	c := NewListCoordinator(store, surface, opts...)
	c.RefreshPositions(ids)
	return c, store, surface, sched
}

func itemIDs(items []*ListItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID())
	}
	return out
}
