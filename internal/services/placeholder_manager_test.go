package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/ajramos/leavebehind/internal/operation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func deleteOp(t *testing.T, count int) operation.Operation {
	t.Helper()
	op, err := operation.New(operation.Delete, count)
	require.NoError(t, err)
	return op
}

func TestPlaceholderManager_BeginIsIdempotent(t *testing.T) {
	surface := &recordingSurface{}
	m := NewPlaceholderManager(&MockDataStore{}, surface)
	item := NewListItem("42", 3)

	p1, created := m.Begin(item, deleteOp(t, 1))
	require.True(t, created)
	p2, created := m.Begin(item, deleteOp(t, 1))
	assert.False(t, created)
	assert.Same(t, p1, p2)

	assert.Equal(t, StatePlaceholder, item.State())
	assert.Equal(t, 1, m.ActiveCount())
	assert.Equal(t, []string{"show 3 1 conversation deleted"}, surface.Calls())
}

func TestPlaceholderManager_CancelRestoresWithoutStore(t *testing.T) {
	store := &MockDataStore{}
	surface := &recordingSurface{}
	m := NewPlaceholderManager(store, surface)
	item := NewListItem("42", 0)

	p, _ := m.Begin(item, deleteOp(t, 1))
	assert.True(t, m.Cancel(p))
	assert.False(t, m.Cancel(p))
	assert.False(t, m.Commit(p))
	m.Wait()

	assert.Equal(t, StateNormal, item.State())
	assert.Equal(t, StateNormal, p.State())
	assert.Equal(t, []string{"show 0 1 conversation deleted", "restore 0"}, surface.Calls())
	store.AssertNotCalled(t, "ApplyMutation", mock.Anything, mock.Anything)

	_, ok := m.Active("42")
	assert.False(t, ok)
}

func TestPlaceholderManager_CommitOnce(t *testing.T) {
	store := &MockDataStore{}
	store.On("ApplyMutation", mock.Anything, Mutation{ItemIDs: []string{"42"}, Action: operation.Delete, Folder: operation.FolderInbox}).Return(nil).Once()
	surface := &recordingSurface{}
	m := NewPlaceholderManager(store, surface)
	m.SetFolder(operation.FolderInbox)
	item := NewListItem("42", 2)

	p, _ := m.Begin(item, deleteOp(t, 1))
	assert.True(t, m.Commit(p))
	assert.False(t, m.Commit(p))
	assert.False(t, m.Cancel(p))
	m.Wait()

	assert.Equal(t, StateCommitted, item.State())
	assert.Equal(t, []string{"show 2 1 conversation deleted", "remove 2"}, surface.Calls())
	store.AssertExpectations(t)
}

func TestPlaceholderManager_CommitCancelRace(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &MockDataStore{}
	store.On("ApplyMutation", mock.Anything, mock.Anything).Return(nil)
	m := NewPlaceholderManager(store, &recordingSurface{})

	const rounds = 200
	var commits, cancels int
	for i := 0; i < rounds; i++ {
		item := NewListItem("item", i)
		p, _ := m.Begin(item, deleteOp(t, 1))

		var wg sync.WaitGroup
		var committed, cancelled bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			committed = m.Commit(p)
		}()
		go func() {
			defer wg.Done()
			cancelled = m.Cancel(p)
		}()
		wg.Wait()

		require.True(t, committed != cancelled, "round %d: exactly one transition must win", i)
		if committed {
			commits++
			assert.Equal(t, StateCommitted, item.State())
		} else {
			cancels++
			assert.Equal(t, StateNormal, item.State())
		}
	}
	m.Wait()

	assert.Equal(t, rounds, commits+cancels)
	store.AssertNumberOfCalls(t, "ApplyMutation", commits)
	assert.Zero(t, m.ActiveCount())
}

func TestPlaceholderManager_CancelAllIsAllOrNone(t *testing.T) {
	store := &MockDataStore{}
	store.On("ApplyMutation", mock.Anything, mock.Anything).Return(nil)
	m := NewPlaceholderManager(store, &recordingSurface{})

	items := []*ListItem{NewListItem("a", 0), NewListItem("b", 1), NewListItem("c", 2)}
	ps := m.BeginGroup(items, deleteOp(t, 3), "g1", Payload{})
	require.Len(t, ps, 3)

	require.True(t, m.Commit(ps[1]))
	assert.False(t, m.CancelAll(ps))
	m.Wait()

	assert.Equal(t, StatePlaceholder, items[0].State())
	assert.Equal(t, StateCommitted, items[1].State())
	assert.Equal(t, StatePlaceholder, items[2].State())
	assert.Equal(t, 2, m.ActiveCount())

	assert.True(t, m.CancelAll([]*Placeholder{ps[0], ps[2]}))
	assert.Equal(t, StateNormal, items[0].State())
	assert.Equal(t, StateNormal, items[2].State())
}

func TestPlaceholderManager_BeginGroupSkipsLiveItems(t *testing.T) {
	m := NewPlaceholderManager(&MockDataStore{}, &recordingSurface{})
	a, b := NewListItem("a", 0), NewListItem("b", 1)

	m.Begin(a, deleteOp(t, 1))
	ps := m.BeginGroup([]*ListItem{a, b}, deleteOp(t, 2), "g", Payload{})
	require.Len(t, ps, 1)
	assert.Equal(t, "b", ps[0].Item().ID())
	assert.Equal(t, "g", ps[0].GroupID())
}

func TestPlaceholderManager_CommitAllBatchesAndRemovesHighestFirst(t *testing.T) {
	store := &MockDataStore{}
	store.On("ApplyMutation", mock.Anything, Mutation{
		ItemIDs: []string{"a", "b", "c"},
		Action:  operation.Archive,
	}).Return(nil).Once()
	surface := &recordingSurface{}
	m := NewPlaceholderManager(store, surface)

	archive, err := operation.New(operation.Archive, 3)
	require.NoError(t, err)
	items := []*ListItem{NewListItem("a", 1), NewListItem("b", 4), NewListItem("c", 2)}
	ps := m.BeginGroup(items, archive, "g", Payload{})

	assert.Equal(t, 3, m.CommitAll(ps))
	assert.Equal(t, 0, m.CommitAll(ps))
	m.Wait()

	calls := surface.Calls()
	assert.Equal(t, []string{"remove 4", "remove 2", "remove 1"}, calls[len(calls)-3:])
	store.AssertExpectations(t)
}

func TestPlaceholderManager_FailureIsReported(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &MockDataStore{}
	store.On("ApplyMutation", mock.Anything, mock.Anything).Return(errors.New("quota exceeded"))
	m := NewPlaceholderManager(store, &recordingSurface{})
	bus := NewEventBus()
	m.SetEvents(bus)

	var mu sync.Mutex
	var failures []MutationFailure
	var events []Event
	m.SetFailureHandler(func(f MutationFailure) {
		mu.Lock()
		failures = append(failures, f)
		mu.Unlock()
	})
	bus.Subscribe(func(e Event) {
		if e.Kind != EventMutationFailed {
			return
		}
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	item := NewListItem("42", 0)
	p, _ := m.Begin(item, deleteOp(t, 1))
	require.True(t, m.Commit(p))
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, ErrStoreMutationFailed)
	assert.Contains(t, failures[0].Err.Error(), "quota exceeded")
	assert.Equal(t, []string{"42"}, failures[0].Mutation.ItemIDs)
	require.Len(t, events, 1)
	assert.True(t, IsUserVisible(events[0].Err))

	// no resurrection after a failed commit
	assert.Equal(t, StateCommitted, item.State())
	store.AssertNumberOfCalls(t, "ApplyMutation", 1)
}

func TestPlaceholderManager_ApplyUsesCurrentFolder(t *testing.T) {
	store := &MockDataStore{}
	store.On("ApplyMutation", mock.Anything, Mutation{
		ItemIDs: []string{"a"},
		Action:  operation.ChangeFolder,
		Folder:  "Work",
		Value:   "Later",
	}).Return(nil).Once()
	m := NewPlaceholderManager(store, nil)
	m.SetFolder("Work")

	op, err := operation.New(operation.ChangeFolder, 1)
	require.NoError(t, err)
	m.Apply(op, Mutation{ItemIDs: []string{"a"}, Action: operation.ChangeFolder, Value: "Later"})
	m.Wait()

	store.AssertExpectations(t)
}

func TestItemState_String(t *testing.T) {
	assert.Equal(t, "normal", StateNormal.String())
	assert.Equal(t, "placeholder", StatePlaceholder.String())
	assert.Equal(t, "committed", StateCommitted.String())
	assert.Equal(t, "unknown", ItemState(9).String())
}
