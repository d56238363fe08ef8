package operation

import (
	"errors"
	"strings"
)

// Kind identifies the destructive or relabeling action a PendingOperation performs
type Kind string

const (
	Delete         Kind = "delete"
	Archive        Kind = "archive"
	ReportSpam     Kind = "report_spam"
	MarkNotSpam    Kind = "mark_not_spam"
	Mute           Kind = "mute"
	RemoveStar     Kind = "remove_star"
	ReportPhishing Kind = "report_phishing"
	ChangeFolder   Kind = "change_folder"
)

// Kinds lists every known action kind in menu order
var Kinds = []Kind{Delete, Archive, ReportSpam, MarkNotSpam, Mute, RemoveStar, ReportPhishing, ChangeFolder}

// ParseKind resolves an action id such as "archive" or "Report-Spam" to a Kind
func ParseKind(s string) (Kind, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	norm = strings.ReplaceAll(norm, " ", "_")
	for _, k := range Kinds {
		if string(k) == norm {
			return k, true
		}
	}
	return "", false
}

// Known reports whether k is one of the enumerated kinds
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}

// Type distinguishes an undo affordance from an error notice
type Type int

const (
	TypeUndo Type = iota
	TypeError
)

// ErrInvalidCount is returned when an operation would affect no items
var ErrInvalidCount = errors.New("operation count must be at least 1")

// Operation is an immutable description of one pending action
type Operation struct {
	kind        Kind
	count       int
	batch       bool
	typ         Type
	description string
}

// New builds an undo operation for count items
func New(kind Kind, count int) (Operation, error) {
	return NewWithType(kind, count, TypeUndo)
}

// NewWithType builds an operation with an explicit toast type
func NewWithType(kind Kind, count int, typ Type) (Operation, error) {
	if count < 1 {
		return Operation{}, ErrInvalidCount
	}
	return Operation{
		kind:        kind,
		count:       count,
		batch:       count > 1,
		typ:         typ,
		description: Describe(kind, count),
	}, nil
}

// Kind returns the action kind
func (o Operation) Kind() Kind { return o.kind }

// Count returns the number of affected items
func (o Operation) Count() int { return o.count }

// IsBatch reports whether the operation covers more than one item
func (o Operation) IsBatch() bool { return o.batch }

// Type returns the toast type
func (o Operation) Type() Type { return o.typ }

// Description returns the cached human-readable description
func (o Operation) Description() string { return o.description }

// SingularDescription returns the terse form used by compact affordances
func (o Operation) SingularDescription() string { return DescribeSingular(o.kind) }

// IsZero reports whether o was never constructed
func (o Operation) IsZero() bool { return o.count == 0 }
