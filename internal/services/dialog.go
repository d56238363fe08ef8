package services

import (
	"context"
	"sync"

	"github.com/ajramos/leavebehind/internal/labels"
)

// DialogGuard remembers whether a modal dialog is currently shown so a second
// one is not stacked on top of it. Each coordinator owns its own guard.
type DialogGuard struct {
	mu    sync.Mutex
	shown bool
}

// TryShow marks the dialog shown; false means one is already up
func (g *DialogGuard) TryShow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.shown {
		return false
	}
	g.shown = true
	return true
}

// Dismissed clears the flag
func (g *DialogGuard) Dismissed() {
	g.mu.Lock()
	g.shown = false
	g.mu.Unlock()
}

// Shown reports whether a dialog is up
func (g *DialogGuard) Shown() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shown
}

// LabelEditSession is one open folder picker over a set of items
type LabelEditSession struct {
	coordinator *ListCoordinator
	itemIDs     []string
	agg         *labels.Aggregator

	mu     sync.Mutex
	closed bool
}

// Toggle flips a folder in the picker. It reports false once the session is
// closed or when a single-choice picker ignores the click.
func (s *LabelEditSession) Toggle(folderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.agg.Toggle(folderID)
}

// Aggregator exposes the pending change set for rendering
func (s *LabelEditSession) Aggregator() *labels.Aggregator {
	return s.agg
}

// ItemIDs returns the items being relabeled
func (s *LabelEditSession) ItemIDs() []string {
	return append([]string(nil), s.itemIDs...)
}

// Commit submits the change set and closes the session. The returned group is
// nil when the items stay in the current folder and nothing needs undoing.
func (s *LabelEditSession) Commit(ctx context.Context) (*UndoGroup, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	s.closed = true
	s.mu.Unlock()
	defer s.coordinator.dialog.Dismissed()

	return s.coordinator.ApplyLabelChanges(ctx, s.itemIDs, s.agg)
}

// Cancel closes the session without submitting anything
func (s *LabelEditSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.coordinator.dialog.Dismissed()
}
