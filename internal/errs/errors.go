// Package errs provides the unified error type used across classiflow.
//
// Every subsystem (remote client, session, issue pipeline, selection
// backends, …) wraps its native errors into *errs.Error before returning
// them. Callers branch on the error kind through the Is* predicates and
// never on concrete driver or transport error types.
//
// Usage:
//
//	// In the remote client — wrap transport errors:
//	return errs.Wrap(errs.ErrKindFetchFailed, "GET /api/databasemeta", err)
//
//	// In a handler — check error kind:
//	if errs.IsInvalidInput(err) {
//	    http.Error(w, err.Error(), http.StatusBadRequest)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown            ErrKind = iota
	ErrKindNotFound                   // unknown table, issue, object or key
	ErrKindConnectionFailed           // cannot reach the backend
	ErrKindTimeout                    // context deadline / cancellation
	ErrKindQueryFailed                // SQL or storage operation error
	ErrKindFetchFailed                // remote read failed or returned non-2xx
	ErrKindPatchFailed                // metadata write returned non-2xx
	ErrKindPipelineStepFailed         // an issue creation step failed or omitted its identifier
	ErrKindInvalidInput               // missing or malformed local input
	ErrKindPermissionDenied           // access denied by the remote service
	ErrKindBusy                       // another edit is already in flight
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindFetchFailed:
		return "fetch_failed"
	case ErrKindPatchFailed:
		return "patch_failed"
	case ErrKindPipelineStepFailed:
		return "pipeline_step_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all classiflow subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original transport or driver error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a missing table, issue or key.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a storage backend operation failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsFetchFailed reports whether err is a failed remote read.
func IsFetchFailed(err error) bool {
	return KindOf(err) == ErrKindFetchFailed
}

// IsPatchFailed reports whether err is a rejected metadata write.
func IsPatchFailed(err error) bool {
	return KindOf(err) == ErrKindPatchFailed
}

// IsPipelineStepFailed reports whether err aborted the issue creation chain.
func IsPipelineStepFailed(err error) bool {
	return KindOf(err) == ErrKindPipelineStepFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsBusy reports whether err was returned because an edit is already running.
func IsBusy(err error) bool {
	return KindOf(err) == ErrKindBusy
}

// KindOf extracts the ErrKind from the first *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
