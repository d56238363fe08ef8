// Package labels batches folder membership toggles into one change set.
package labels

import (
	"sort"
	"strings"
)

// Change records one toggle: FolderID was switched to Add (true) or removed
type Change struct {
	FolderID string
	Add      bool
}

// Aggregator collects toggles for a set of items before they are committed.
//
// Every click is appended to the log, including ones that cancel an earlier
// click; providers are notified per change and collapsing pairs would hide
// those notifications. What gets submitted is the final state per folder.
type Aggregator struct {
	initial map[string]bool
	known   []string
	intent  map[string]bool
	log     []Change
	single  bool
}

// NewAggregator starts from the folders the target items are currently in
func NewAggregator(present []string) *Aggregator {
	a := &Aggregator{
		initial: make(map[string]bool, len(present)),
		intent:  make(map[string]bool),
	}
	for _, id := range present {
		a.initial[id] = true
		a.known = append(a.known, id)
	}
	return a
}

// NewSingleAggregator behaves like a radio group over known: a folder can only
// be switched on, and switching one on switches every other folder off.
func NewSingleAggregator(present, known []string) *Aggregator {
	a := NewAggregator(present)
	a.single = true
	seen := make(map[string]bool, len(a.known))
	for _, id := range a.known {
		seen[id] = true
	}
	for _, id := range known {
		if !seen[id] {
			a.known = append(a.known, id)
			seen[id] = true
		}
	}
	return a
}

// Toggle flips folderID and records the change. In single mode a toggle that
// would switch the selected folder off is ignored and reported as false.
func (a *Aggregator) Toggle(folderID string) bool {
	add := !a.IsPresent(folderID)
	if a.single {
		if !add {
			return false
		}
		for _, other := range a.known {
			if other != folderID && a.IsPresent(other) {
				a.record(other, false)
			}
		}
	}
	a.record(folderID, add)
	return true
}

func (a *Aggregator) record(folderID string, add bool) {
	if _, ok := a.initial[folderID]; !ok && !a.isKnown(folderID) {
		a.known = append(a.known, folderID)
	}
	a.intent[folderID] = add
	a.log = append(a.log, Change{FolderID: folderID, Add: add})
}

func (a *Aggregator) isKnown(id string) bool {
	for _, k := range a.known {
		if k == id {
			return true
		}
	}
	return false
}

// IsPresent reports the current membership of folderID
func (a *Aggregator) IsPresent(folderID string) bool {
	if v, ok := a.intent[folderID]; ok {
		return v
	}
	return a.initial[folderID]
}

// Log returns every recorded toggle in arrival order
func (a *Aggregator) Log() []Change {
	out := make([]Change, len(a.log))
	copy(out, a.log)
	return out
}

// Reset clears the log and forgets every toggle
func (a *Aggregator) Reset() {
	a.log = nil
	a.intent = make(map[string]bool)
}

// Changes returns one change per folder touched in the log, in log order,
// carrying its final value. A folder toggled back to its starting state is
// still included.
func (a *Aggregator) Changes() []Change {
	seen := make(map[string]bool, len(a.log))
	out := make([]Change, 0, len(a.log))
	for _, c := range a.log {
		if seen[c.FolderID] {
			continue
		}
		seen[c.FolderID] = true
		out = append(out, Change{FolderID: c.FolderID, Add: a.intent[c.FolderID]})
	}
	return out
}

// Added returns the logged folders whose final intent is "added"
func (a *Aggregator) Added() []string {
	return a.filter(true)
}

// Removed returns the logged folders whose final intent is "removed"
func (a *Aggregator) Removed() []string {
	return a.filter(false)
}

func (a *Aggregator) filter(add bool) []string {
	var out []string
	for _, c := range a.Changes() {
		if c.Add == add {
			out = append(out, c.FolderID)
		}
	}
	return out
}

// Serialize renders the added folders as a comma separated list
func (a *Aggregator) Serialize() string {
	return strings.Join(a.Added(), ",")
}

// Present returns the resulting membership, sorted
func (a *Aggregator) Present() []string {
	var out []string
	for _, id := range a.known {
		if a.IsPresent(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Dirty reports whether anything was toggled since the last reset
func (a *Aggregator) Dirty() bool {
	return len(a.log) > 0
}
