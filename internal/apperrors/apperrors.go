// Package apperrors defines the domain-level error taxonomy shared by the
// memory store, gateway, agent runtime, workflow engine and task
// orchestrator. Errors carry a stable Kind so HTTP and Temporal activity
// layers can translate them into status codes / retry classifications
// without string matching, in the same spirit as the teacher's
// toolerrors.ToolError chain (preserves Unwrap for errors.Is/As).
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is a stable taxonomy code for a domain error (spec §7).
type Kind string

const (
	KindTenantNotFound      Kind = "tenant_not_found"
	KindTenantDisabled      Kind = "tenant_disabled"
	KindTenantMismatch      Kind = "tenant_mismatch"
	KindAssistantNotFound   Kind = "assistant_not_found"
	KindAssistantInactive   Kind = "assistant_inactive"
	KindThreadNotFound      Kind = "thread_not_found"
	KindThreadAccessDenied Kind = "thread_access_denied"
	KindThreadBusy          Kind = "thread_busy"
	KindMemoryNotFound      Kind = "memory_not_found"
	KindMemoryInsertFailure Kind = "memory_insert_failure"
	KindMemoryWriteError    Kind = "memory_write_error"
	KindLLMError            Kind = "llm_error"
	KindToolError           Kind = "tool_error"
	KindWorkflowError       Kind = "workflow_error"
	KindValidationError     Kind = "validation_error"
	KindUpstreamTimeout     Kind = "upstream_timeout"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
)

// Retryable reports whether activities/callers should retry an error of this
// kind. ValidationError and not-found/access-denied kinds are never
// retryable (spec §4.5 durability contract, §7 propagation policy).
func (k Kind) Retryable() bool {
	switch k {
	case KindValidationError, KindTenantNotFound, KindTenantDisabled, KindTenantMismatch,
		KindAssistantNotFound, KindAssistantInactive, KindThreadNotFound,
		KindThreadAccessDenied, KindMemoryNotFound:
		return false
	default:
		return true
	}
}

// Error is a structured domain failure that preserves a stable Kind plus an
// optional cause, while still implementing the standard error interface and
// supporting errors.Is/As via Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind that wraps a cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is lets errors.Is match two *Error values by Kind alone (ignoring message
// and cause), mirroring how callers typically compare against a sentinel
// kind ("is this a ThreadBusy?").
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err, returning ("", false) when err does not
// wrap an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Retryable reports whether err (if a domain *Error) is retryable. Non-domain
// errors are treated as retryable (conservative default for infrastructure
// failures that haven't been classified).
func Retryable(err error) bool {
	if k, ok := KindOf(err); ok {
		return k.Retryable()
	}
	return true
}
