package field

import "fmt"

// Code classifies a validation failure.
type Code string

const (
	CodeValueOutOfRange        Code = "ValueOutOfRange"
	CodeValueNotInEnumeration  Code = "ValueNotInEnumeration"
	CodeTypeMismatch           Code = "TypeMismatch"
	CodeUnknownReferenceTarget Code = "UnknownReferenceTarget"
	CodeUnknownGroupTarget     Code = "UnknownGroupTarget"
	CodeRequired               Code = "Required"
	CodeNotUnique              Code = "NotUnique"
)

// ValidationError reports a value or property that violates its kind's constraints.
type ValidationError struct {
	Code    Code
	Field   string // field key, when known
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field %q: %s: %s", e.Field, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another ValidationError with the same code. A target without a
// code matches any ValidationError.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// WithField returns a copy of the error attributed to the given field key.
func (e *ValidationError) WithField(key string) *ValidationError {
	c := *e
	c.Field = key
	return &c
}

// Sentinels for errors.Is checks.
var (
	ErrValidation             = &ValidationError{}
	ErrValueOutOfRange        = &ValidationError{Code: CodeValueOutOfRange}
	ErrValueNotInEnumeration  = &ValidationError{Code: CodeValueNotInEnumeration}
	ErrTypeMismatch           = &ValidationError{Code: CodeTypeMismatch}
	ErrUnknownReferenceTarget = &ValidationError{Code: CodeUnknownReferenceTarget}
	ErrUnknownGroupTarget     = &ValidationError{Code: CodeUnknownGroupTarget}
	ErrRequired               = &ValidationError{Code: CodeRequired}
	ErrNotUnique              = &ValidationError{Code: CodeNotUnique}
)

func invalid(code Code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}
