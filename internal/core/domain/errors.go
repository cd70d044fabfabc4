package domain

import (
	"errors"
	"fmt"
)

// Domain error sentinels. Every error the pipeline surfaces wraps exactly
// one of these, so the CLI can map it to an exit code with a single switch.
var (
	// ErrValidation covers schema/config problems caught before any row is processed.
	ErrValidation = errors.New("validation error")

	// ErrResource covers disk, memory, and timeout failures.
	ErrResource = errors.New("resource error")

	// ErrProcessing covers stage failures during a run (embedding backend,
	// chunker overflow, index insert failure).
	ErrProcessing = errors.New("processing error")

	// ErrCapabilityUnavailable indicates an optional backend (Parquet, XLSX,
	// PDF, YAML/TOML config, telemetry transport) was not registered.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrNotFound indicates a requested checkpoint or resource does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError wraps ErrValidation with contextual detail. Exit code 2.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() []error { return []error{ErrValidation, e.Err} }

func NewValidationError(op string, err error) *ValidationError {
	return &ValidationError{Op: op, Err: err}
}

// ResourceError wraps ErrResource with contextual detail. Exit code 3.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource: %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() []error { return []error{ErrResource, e.Err} }

func NewResourceError(op string, err error) *ResourceError {
	return &ResourceError{Op: op, Err: err}
}

// ProcessingError wraps ErrProcessing with contextual detail. Exit code 1.
type ProcessingError struct {
	Op    string
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing: stage=%s op=%s: %v", e.Stage, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() []error { return []error{ErrProcessing, e.Err} }

func NewProcessingError(stage, op string, err error) *ProcessingError {
	return &ProcessingError{Stage: stage, Op: op, Err: err}
}

// CapabilityError wraps ErrCapabilityUnavailable, naming the missing backend.
type CapabilityError struct {
	Capability string
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %q unavailable: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() []error { return []error{ErrCapabilityUnavailable, e.Err} }

func NewCapabilityError(capability string, err error) *CapabilityError {
	if err == nil {
		err = fmt.Errorf("backend not registered")
	}
	return &CapabilityError{Capability: capability, Err: err}
}

// ExitCode maps an error produced anywhere in the pipeline to the process
// exit code defined by the CLI's error taxonomy: 2 validation, 3 resource,
// 1 everything else that reached here as a hard failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(err, ErrValidation):
		return 2
	case errors.Is(err, ErrResource):
		return 3
	default:
		return 1
	}
}
