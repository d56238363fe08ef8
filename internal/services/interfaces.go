package services

import (
	"context"
	"time"

	"github.com/ajramos/leavebehind/internal/operation"
	"github.com/ajramos/leavebehind/internal/recent"
)

// Mutation is one authoritative change sent to the data store
type Mutation struct {
	ItemIDs []string
	Action  operation.Kind
	// Folder is the folder the list was showing when the action was taken
	Folder string
	// Value carries the comma separated added folders of a ChangeFolder action
	Value string
	// Removed lists the folders a ChangeFolder action takes the items out of
	Removed []string
}

// DataStore is the authoritative backing store behind the list
type DataStore interface {
	ApplyMutation(ctx context.Context, m Mutation) error
	Refresh(ctx context.Context) ([]string, error)
	LookupBatchAction(actionID string) (operation.Kind, error)
}

// Header is the display summary of one message
type Header struct {
	ID       string
	Sender   string
	Subject  string
	Snippet  string
	Received time.Time
	Labels   []string
}

// Mailbox is a DataStore that can also describe its messages and list its
// folders. Every backend the client can open implements it.
type Mailbox interface {
	DataStore
	SetFolder(folder string)
	Headers(ctx context.Context, ids []string) (map[string]Header, error)
	Folders(ctx context.Context) ([]recent.Entry, error)
}

// PresentationSurface renders rows. Calls are made while the caller holds
// its lock, so implementations must not call back into the pipeline
// synchronously; post to the event loop instead.
type PresentationSurface interface {
	ShowPlaceholder(position int, description string)
	RemoveRow(position int)
	RestoreRow(position int)
	MeasureHeight(content string) int
}

// MutationFailure describes a commit the store rejected
type MutationFailure struct {
	Op       operation.Operation
	Mutation Mutation
	Err      error
}

// FailureHandler receives rejected commits. It runs on the mutation goroutine.
type FailureHandler func(MutationFailure)

// Timer is a cancellable scheduled callback
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Dispatcher runs f on the goroutine that owns the list, e.g. a UI event loop
type Dispatcher func(f func())

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func directDispatch(f func()) { f() }
