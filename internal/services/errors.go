package services

import "errors"

// Standard errors of the undo pipeline
var (
	// Lifecycle errors
	ErrTornDown          = errors.New("list has been torn down")
	ErrInvalidTransition = errors.New("placeholder already resolved")
	ErrStaleIdentity     = errors.New("item is no longer tracked")

	// Input errors
	ErrUnknownItem        = errors.New("unknown list item")
	ErrNoItems            = errors.New("no items to act on")
	ErrUnknownActionKind  = errors.New("unknown action kind")
	ErrDialogAlreadyShown = errors.New("dialog already shown")

	// Collaborator errors
	ErrStoreMutationFailed = errors.New("store mutation failed")
	ErrPersistence         = errors.New("persistence failed")
)

// IsIgnorable reports errors that only describe a lost race or an
// already-resolved item and must never reach the user
func IsIgnorable(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrStaleIdentity)
}

// IsUserVisible reports errors worth a notification in the UI
func IsUserVisible(err error) bool {
	return errors.Is(err, ErrStoreMutationFailed) ||
		errors.Is(err, ErrDialogAlreadyShown)
}
