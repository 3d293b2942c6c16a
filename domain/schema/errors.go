package schema

import (
	"errors"
	"fmt"
)

// Schema integrity failures. Operations wrap them in *IntegrityError.
var (
	ErrInvalidKey       = errors.New("invalid key")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrDuplicateID      = errors.New("duplicate field id")
	ErrFieldNotFound    = errors.New("field not found")
	ErrMissingID        = errors.New("missing id")
	ErrMissingType      = errors.New("missing type property")
	ErrKindChanged      = errors.New("field kind cannot change")
	ErrInvalidTitle     = errors.New("field cannot be the title field")
	ErrNotPermutation   = errors.New("order is not a permutation of the schema fields")
	ErrGroupReferenced  = errors.New("group is still referenced")
	ErrDanglingTarget   = errors.New("dangling reference or group target")
	ErrCorrespondingRef = errors.New("field is the corresponding field of a reference")
	ErrNestedGroup      = errors.New("group schemas cannot contain group fields")
	ErrGroupBackRef     = errors.New("group schemas cannot hold bidirectional references")
	ErrLinkedTarget     = errors.New("target of a linked reference cannot change")
)

// IntegrityError reports a rejected schema mutation. The schema it was
// applied to is left untouched.
type IntegrityError struct {
	Op    string // operation name, e.g. "add_field"
	Field string // field key or id, when known
	Err   error
}

func (e *IntegrityError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema %s %q: %v", e.Op, e.Field, e.Err)
	}
	return fmt.Sprintf("schema %s: %v", e.Op, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

func integrity(op, field string, err error) error {
	return &IntegrityError{Op: op, Field: field, Err: err}
}
