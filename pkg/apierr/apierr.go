// Package apierr defines the structured error taxonomy surfaced across
// debughostd's component boundaries, grounded on the pack's own pattern of a
// small typed error wrapper (code + message + cause) rather than a raw
// error string.
package apierr

import "fmt"

// Kind is the top-level error taxonomy from the error handling design.
type Kind string

const (
	KindValidation Kind = "validation_error"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindEngine     Kind = "engine_error"
	KindTimeout    Kind = "timeout"
	KindIO         Kind = "io_error"
	KindDecode     Kind = "decode_error"
)

// Code is a finer-grained classification, mainly used within KindConflict.
type Code string

const (
	CodeDuplicateWorkspace  Code = "duplicate_workspace"
	CodePortConflict        Code = "port_conflict"
	CodeNetworkConflict     Code = "network_conflict"
	CodeOperationInProgress Code = "operation_in_progress"
	CodeNoPortAvailable     Code = "no_port_available"
	CodeInvalidWorkspace    Code = "invalid_workspace"
	CodeStartupTimeout      Code = "startup_timeout"
	CodeStopTimeout         Code = "stop_timeout"
	CodeImageUnavailable    Code = "image_unavailable"
	CodeInvalidFilter       Code = "invalid_filter"
)

// Error is the structured error type every exported operation returns.
type Error struct {
	Kind      Kind
	Code      Code
	Message   string
	Guidance  []string
	ProjectID string
	Operation string
	Cause     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.ProjectID != "" {
		msg = fmt.Sprintf("%s: project %s: %s", e.Operation, e.ProjectID, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a bare Error with no cause.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an Error carrying cause as the underlying error.
func Wrap(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// WithGuidance attaches caller-facing hints and returns the same error.
func (e *Error) WithGuidance(hints ...string) *Error {
	e.Guidance = append(e.Guidance, hints...)
	return e
}

// WithContext attaches a project_id/operation pair and returns the same
// error for chaining. The Lifecycle Manager sets it on the errors it builds
// itself (project not found, operation in progress, wrong status to start);
// errors it passes up from the registry, port registry or engine are
// returned without it.
func (e *Error) WithContext(projectID, operation string) *Error {
	e.ProjectID = projectID
	e.Operation = operation
	return e
}

// As recovers the structured *Error from any error value, if present.
func As(err error) (*Error, bool) {
	var target *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return target, false
}
