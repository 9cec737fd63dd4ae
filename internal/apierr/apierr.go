// Package apierr defines the orchestrator's abstract error taxonomy (spec §7)
// as a small typed error so the HTTP layer can map a failure to a status code
// without string-matching messages.
package apierr

import (
	"errors"
	"fmt"
)

// Kind identifies which bucket of spec.md §7 an error belongs to.
type Kind string

const (
	InvalidArgument  Kind = "invalid_argument"
	NotFound         Kind = "not_found"
	CapacityExceeded Kind = "capacity_exceeded"
	VideoUnreadable  Kind = "video_unreadable"
	VideoTooLarge    Kind = "video_too_large"
	SegmenterFailed  Kind = "segmenter_failed"
	Cancelled        Kind = "cancelled"
	Internal         Kind = "internal"
)

// Error is the orchestrator's typed error value. It wraps an optional cause
// so callers can still walk the chain with errors.Is/errors.As.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around a cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, defaulting
// to Internal for anything else — the last-resort bucket of spec.md §7.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
