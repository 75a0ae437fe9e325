// Package toolerr defines the error taxonomy surfaced across the MCP
// tool boundary: validation failures, resource failures, tool
// execution failures, and store failures.
package toolerr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNotFound is returned when a repository lookup finds nothing.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness
	// or ordering invariant (e.g. a stale context version).
	ErrConflict = errors.New("conflict")
)

// ValidationError is an aggregated parameter validation failure.
// validation.AggregateErrors only builds one with a non-empty Fields.
type ValidationError struct {
	Context string
	Fields  []FieldError
}

// FieldError describes a single invalid field.
type FieldError struct {
	Field    string
	Message  string
	Received string
}

// NewValidationError builds a ValidationError from fields as given;
// Error formats them into one combined message.
func NewValidationError(context string, fields []FieldError) *ValidationError {
	return &ValidationError{Context: context, Fields: fields}
}

// Error implements the error interface, matching the aggregated-message
// shape: a one-line message for a single error, a bulleted list for many.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		f := e.Fields[0]
		if f.Received != "" {
			return fmt.Sprintf("Invalid %s - %s: %s (received %s)", e.Context, f.Field, f.Message, f.Received)
		}
		return fmt.Sprintf("Invalid %s - %s: %s", e.Context, f.Field, f.Message)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Invalid %s - %d errors:\n", e.Context, len(e.Fields))
	for _, f := range e.Fields {
		if f.Received != "" {
			fmt.Fprintf(&b, " • %s: %s (received %s)\n", f.Field, f.Message, f.Received)
		} else {
			fmt.Fprintf(&b, " • %s: %s\n", f.Field, f.Message)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ResourceError describes a failed MCP resource read (cookie session,
// prompt). It is carried as response data, not raised across the MCP
// boundary, mirroring how the cookie session provider reports errors
// inline in its JSON body.
type ResourceError struct {
	URI     string
	Message string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %s: %s", e.URI, e.Message)
}

// ToolError is returned to the MCP caller when a tool cannot complete.
type ToolError struct {
	Tool    string
	Message string
	Details map[string]any
	Err     error
}

func (e *ToolError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("%s: %s", e.Tool, e.Message)
	}
	return e.Message
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// StoreError wraps a repository failure. At the registry boundary every
// StoreError is surfaced to the caller as a ToolError.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches target, so errors.Is(err,
// toolerr.ErrNotFound) and errors.Is(err, toolerr.ErrConflict) work
// through a wrapping StoreError.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// AsToolError converts any error into a *ToolError suitable for
// returning from an MCP tool handler, preserving the original as Err.
func AsToolError(tool string, err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{Tool: tool, Message: err.Error(), Err: err}
}
