package onnx

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned by any session operation after Close.
	ErrSessionClosed = errors.New("session is closed")
	// ErrSessionBusy is returned when Run is called while another run on the
	// same session is still in flight.
	ErrSessionBusy = errors.New("session is already running")
	// ErrInvalidConfig marks configuration rejected before any engine call.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNilTensor is returned when a nil tensor is passed to Run.
	ErrNilTensor = errors.New("nil tensor")
)

// InitializationError reports a failure to set up the process-wide
// environment.
type InitializationError struct {
	Name string
	Err  error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize environment %q: %v", e.Name, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// ModelLoadError reports a model file that is missing, unreadable, or not a
// graph the engine accepts.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// InferenceExecutionError wraps an engine failure during Run. These are
// terminal for the call and never retried.
type InferenceExecutionError struct {
	Model string
	Err   error
}

func (e *InferenceExecutionError) Error() string {
	return fmt.Sprintf("run %s: %v", e.Model, e.Err)
}

func (e *InferenceExecutionError) Unwrap() error { return e.Err }
