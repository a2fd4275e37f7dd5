package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFactor is returned when a compression factor is outside
	// (0, 1) or an expansion factor is not above 1.
	ErrInvalidFactor = errors.New("invalid scale factor")
	// ErrMissingBaseline is returned when baseline comparison is enabled
	// without baseline tasks.
	ErrMissingBaseline = errors.New("missing baseline")
	// ErrTaskNotFound is returned by mutators that address an unknown task.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNoData is returned when a Processor has no task set to work on.
	ErrNoData = errors.New("no processed data")
)

// ConfigurationError reports an option or argument value the engine
// cannot work with.
type ConfigurationError struct {
	Option string
	Value  float64
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %v", e.Option, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
