package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ajramos/leavebehind/internal/recent"
)

// RecentFolderService keeps the quick-pick list of recently visited folders
// for one account and persists it through a recent.Persister
type RecentFolderService struct {
	mu        sync.Mutex
	cache     *recent.Cache
	persister recent.Persister
	current   string
	logger    *log.Logger // Optional - for debug logging
}

// NewRecentFolderService creates the service. A nil persister keeps the list
// in memory only.
func NewRecentFolderService(cache *recent.Cache, persister recent.Persister) *RecentFolderService {
	return &RecentFolderService{cache: cache, persister: persister}
}

// SetLogger sets the logger for debug output
func (s *RecentFolderService) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// Load replaces the cached folders with the persisted ones
func (s *RecentFolderService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *RecentFolderService) loadLocked(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	entries, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: load recent folders: %v", ErrPersistence, err)
	}
	s.cache.Restore(entries)
	if s.logger != nil {
		s.logger.Printf("recent folders: loaded %d", s.cache.Len())
	}
	return nil
}

// ChangeCurrentFolder records entry as the folder now shown and returns the
// recent list to offer, which never contains entry itself. A failed save is
// returned alongside the updated list.
func (s *RecentFolderService) ChangeCurrentFolder(ctx context.Context, entry recent.Entry) ([]recent.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Touch(entry)
	s.current = entry.ID
	out := s.cache.Snapshot(entry.ID)
	if s.persister == nil {
		return out, nil
	}
	if err := s.persister.Save(ctx, s.cache.Entries()); err != nil {
		return out, fmt.Errorf("%w: save recent folders: %v", ErrPersistence, err)
	}
	return out, nil
}

// Recent returns the recent list excluding the current folder
func (s *RecentFolderService) Recent() []recent.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Snapshot(s.current)
}

// Current returns the id of the folder last passed to ChangeCurrentFolder
func (s *RecentFolderService) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ChangeAccount swaps in another account's persisted list
func (s *RecentFolderService) ChangeAccount(ctx context.Context, persister recent.Persister) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Clear()
	s.current = ""
	s.persister = persister
	return s.loadLocked(ctx)
}
