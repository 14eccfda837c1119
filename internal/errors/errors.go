package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Kind classifies a tool failure. Every error surfaced to a client carries one.
type Kind string

const (
	// Engine errors
	KindEngineNotFound         Kind = "engine_not_found"
	KindEngineIncompatible     Kind = "engine_incompatible"
	KindEngineInvocationFailed Kind = "engine_invocation_failed"
	KindEngineTimeout          Kind = "engine_timeout"

	// Workspace errors
	KindInvalidPath          Kind = "invalid_path"
	KindPathOutsideWorkspace Kind = "path_outside_workspace"
	KindConflictingInput     Kind = "conflicting_input"

	// Request errors
	KindInvalidPattern Kind = "invalid_pattern"
	KindInvalidRule    Kind = "invalid_rule"
	KindInvalidRequest Kind = "invalid_request"

	// Mutation errors
	KindPartialWriteFailure Kind = "partial_write_failure"

	// Configuration errors
	KindConfig Kind = "config"

	KindInternal Kind = "internal"
)

// Sentinels for errors.Is. They match any *ToolError of the same kind.
var (
	ErrEngineNotFound         = &ToolError{Kind: KindEngineNotFound}
	ErrEngineIncompatible     = &ToolError{Kind: KindEngineIncompatible}
	ErrEngineInvocationFailed = &ToolError{Kind: KindEngineInvocationFailed}
	ErrEngineTimeout          = &ToolError{Kind: KindEngineTimeout}
	ErrInvalidPath            = &ToolError{Kind: KindInvalidPath}
	ErrPathOutsideWorkspace   = &ToolError{Kind: KindPathOutsideWorkspace}
	ErrConflictingInput       = &ToolError{Kind: KindConflictingInput}
	ErrInvalidPattern         = &ToolError{Kind: KindInvalidPattern}
	ErrInvalidRule            = &ToolError{Kind: KindInvalidRule}
	ErrInvalidRequest         = &ToolError{Kind: KindInvalidRequest}
	ErrPartialWriteFailure    = &ToolError{Kind: KindPartialWriteFailure}
)

// ToolError is the error type returned by the engine, workspace and tool layers.
type ToolError struct {
	Kind       Kind
	Op         string
	Message    string
	Path       string
	Diagnostic string // engine stderr or validation detail, shown to the client verbatim
	Underlying error
	Timestamp  time.Time
}

// New creates a tool error of the given kind
func New(kind Kind, op, message string) *ToolError {
	return &ToolError{
		Kind:      kind,
		Op:        op,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a tool error with a formatted message
func Newf(kind Kind, op, format string, args ...interface{}) *ToolError {
	return New(kind, op, fmt.Sprintf(format, args...))
}

// Wrap creates a tool error around an underlying cause
func Wrap(kind Kind, op string, err error, message string) *ToolError {
	e := New(kind, op, message)
	e.Underlying = err
	return e
}

// WithPath attaches the offending path
func (e *ToolError) WithPath(path string) *ToolError {
	e.Path = path
	return e
}

// WithDiagnostic attaches engine or validation output
func (e *ToolError) WithDiagnostic(diagnostic string) *ToolError {
	e.Diagnostic = diagnostic
	return e
}

// Error implements the error interface
func (e *ToolError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Underlying != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Underlying)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As
func (e *ToolError) Unwrap() error {
	return e.Underlying
}

// Is reports whether target is a ToolError of the same kind
func (e *ToolError) Is(target error) bool {
	t, ok := target.(*ToolError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first ToolError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var te *ToolError
	if stderrors.As(err, &te) {
		return te.Kind
	}
	return KindInternal
}

// DiagnosticOf returns the diagnostic of the first ToolError in err's chain.
func DiagnosticOf(err error) string {
	var te *ToolError
	if stderrors.As(err, &te) {
		return te.Diagnostic
	}
	return ""
}

// FileError represents a failure affecting a single file of a multi-file operation
type FileError struct {
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	return &FileError{
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
