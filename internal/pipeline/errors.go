package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrBusy             = errors.New("a request for this flow is already in flight")
	ErrEmptyInput       = errors.New("input can't be empty")
	ErrUnsupportedMedia = errors.New("receipt must be an image")
)

// ConfigurationError means the pipeline was started without what it needs to
// reach the external collaborators. It is decided once at startup and every
// submission returns the same value.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// InterpretationError wraps a failed or malformed command interpreter round trip.
type InterpretationError struct {
	Err error
}

func (e *InterpretationError) Error() string {
	return fmt.Sprintf("interpret command: %v", e.Err)
}

func (e *InterpretationError) Unwrap() error {
	return e.Err
}

// ExtractionError wraps a failed or malformed vision extractor round trip.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract receipt total: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
