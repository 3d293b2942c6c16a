package condition

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrMalformed       = errors.New("malformed condition")
	ErrUnknownField    = errors.New("selector does not resolve to a field")
	ErrIncompatible    = errors.New("condition is not compatible with the target")
	ErrInvalidOperator = errors.New("invalid operator")
	ErrInvalidValue    = errors.New("invalid value")
	ErrBadSelector     = errors.New("invalid selector")
)

// MalformedError reports the node of a condition tree that failed
// construction or decoding. Path is dotted, e.g. "and[1].bool".
type MalformedError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed condition: %s", e.Reason)
	}
	return fmt.Sprintf("malformed condition at %s: %s", e.Path, e.Reason)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Is matches ErrMalformed in addition to the wrapped cause.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(path string, err error, format string, args ...any) *MalformedError {
	return &MalformedError{Path: path, Err: err, Reason: fmt.Sprintf(format, args...)}
}

func join(parent, kind string) string {
	if parent == "" {
		return kind
	}
	return parent + "." + kind
}

func index(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
