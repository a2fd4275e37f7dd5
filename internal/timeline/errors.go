package timeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for record validation.
var (
	// ErrMissingField indicates a required field (id, name) is empty.
	ErrMissingField = errors.New("required field missing")
	// ErrDuplicateID indicates two records of the same kind share an ID.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrInvalidRange indicates a task whose start is not before its end.
	ErrInvalidRange = errors.New("start must be before end")
	// ErrInvalidTimestamp indicates a timestamp that is unset or unparseable.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrInvalidEnum indicates an unrecognized status, priority, type or severity.
	ErrInvalidEnum = errors.New("invalid enum value")
	// ErrInvalidCapacity indicates a negative resource capacity.
	ErrInvalidCapacity = errors.New("invalid capacity")
)

// RecordKind names the collection a validated record belongs to.
type RecordKind string

const (
	KindTask     RecordKind = "task"
	KindResource RecordKind = "resource"
	KindEvent    RecordKind = "event"
)

// ValidationError identifies the offending record and field. It always
// wraps one of the sentinel errors above.
type ValidationError struct {
	Kind  RecordKind
	Index int    // position in the input slice
	ID    string // empty when the id itself is missing
	Field string
	Err   error
}

// Error returns a human-readable string including record context.
func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q: %s: %v", e.Kind, e.ID, e.Field, e.Err)
	}
	return fmt.Sprintf("%s #%d: %s: %v", e.Kind, e.Index, e.Field, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
