package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ajramos/leavebehind/internal/recent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecentService(t *testing.T, p recent.Persister) *RecentFolderService {
	t.Helper()
	cache, err := recent.New(recent.DefaultCapacity)
	require.NoError(t, err)
	return NewRecentFolderService(cache, p)
}

func names(entries []recent.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestRecentFolderService_ExcludesCurrentAndSortsByName(t *testing.T) {
	p := &memoryPersister{}
	s := newRecentService(t, p)
	ctx := context.Background()

	for _, name := range []string{"work", "Archive", "inbox"} {
		_, err := s.ChangeCurrentFolder(ctx, recent.Entry{ID: name, Name: name})
		require.NoError(t, err)
	}

	assert.Equal(t, "inbox", s.Current())
	assert.Equal(t, []string{"Archive", "work"}, names(s.Recent()))
	assert.Len(t, p.entries, 3)
	assert.Equal(t, 3, p.saves)
}

func TestRecentFolderService_LoadAndChangeAccount(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	first := &memoryPersister{entries: []recent.Entry{
		{ID: "a", Name: "A", Touched: now.Add(-time.Minute)},
		{ID: "b", Name: "B", Touched: now},
	}}
	second := &memoryPersister{entries: []recent.Entry{{ID: "z", Name: "Z", Touched: now}}}

	s := newRecentService(t, first)
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, []string{"A", "B"}, names(s.Recent()))

	require.NoError(t, s.ChangeAccount(ctx, second))
	assert.Equal(t, []string{"Z"}, names(s.Recent()))
	assert.Empty(t, s.Current())
}

func TestRecentFolderService_PersistenceErrors(t *testing.T) {
	ctx := context.Background()
	p := &memoryPersister{err: errors.New("disk full")}
	s := newRecentService(t, p)

	err := s.Load(ctx)
	assert.ErrorIs(t, err, ErrPersistence)

	list, err := s.ChangeCurrentFolder(ctx, recent.Entry{ID: "x", Name: "X"})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, list)
	assert.Equal(t, "x", s.Current())
}

func TestRecentFolderService_WithoutPersister(t *testing.T) {
	s := newRecentService(t, nil)
	require.NoError(t, s.Load(context.Background()))
	list, err := s.ChangeCurrentFolder(context.Background(), recent.Entry{ID: "x", Name: "X"})
	require.NoError(t, err)
	assert.Empty(t, list)
}
