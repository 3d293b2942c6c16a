package item

import (
	"errors"
	"fmt"
)

var (
	ErrVersionConflict   = errors.New("version conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotPublished      = errors.New("item is not published")
	ErrDeleted           = errors.New("item is deleted")
	ErrReferenced        = errors.New("item is referenced")
	ErrUnknownInstance   = errors.New("unknown group instance")
	ErrNotPermutation    = errors.New("order is not a permutation of the current instances")
	ErrNotGroupField     = errors.New("field is not a group field")
	ErrInconsistent      = errors.New("item fields are inconsistent with the schema")
)

// ConflictError is returned when a write names a version other than the head.
type ConflictError struct {
	ItemID   string
	Expected string
	Head     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("item %s: expected version %s but head is %s", e.ItemID, e.Expected, e.Head)
}

func (e *ConflictError) Unwrap() error { return ErrVersionConflict }

// InconsistencyError names the stored field that does not fit the schema.
type InconsistencyError struct {
	SchemaFieldID string
	ItemGroupID   string
	Reason        string
}

func (e *InconsistencyError) Error() string {
	if e.ItemGroupID != "" {
		return fmt.Sprintf("field %s (instance %s): %s", e.SchemaFieldID, e.ItemGroupID, e.Reason)
	}
	return fmt.Sprintf("field %s: %s", e.SchemaFieldID, e.Reason)
}

func (e *InconsistencyError) Unwrap() error { return ErrInconsistent }
