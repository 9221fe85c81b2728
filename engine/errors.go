// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"errors"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown                    Code = "UNKNOWN"
	CodeStallNotEligible           Code = "STALL_NOT_ELIGIBLE"
	CodeProcessAlreadyActive       Code = "PROCESS_ALREADY_ACTIVE"
	CodeProcessNotAcceptingEntries Code = "PROCESS_NOT_ACCEPTING_ENTRIES"
	CodeNotYetExpired              Code = "NOT_YET_EXPIRED"
	CodeAlreadyTerminal            Code = "ALREADY_TERMINAL"
	CodeMaxDurationExceeded        Code = "MAX_DURATION_EXCEEDED"
	CodeDuplicateParticipant       Code = "DUPLICATE_PARTICIPANT"
	CodeBidTooLow                  Code = "BID_TOO_LOW"
	CodeBidSuperseded              Code = "BID_SUPERSEDED"
	CodeNotFound                   Code = "NOT_FOUND"
	CodeForbidden                  Code = "FORBIDDEN"
	CodeInvalidArgument            Code = "INVALID_ARGUMENT"
)

// MetaRequiredMinimum is the metadata key carrying the next acceptable bid.
const MetaRequiredMinimum = "required_minimum"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs/telemetry)
	Metadata map[string]string // Additional context, e.g. required_minimum
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is. Never return these directly when metadata or a
// more specific message is available.
var (
	ErrStallNotEligible           = &Error{Code: CodeStallNotEligible, Message: "stall is not eligible for this allocation"}
	ErrProcessAlreadyActive       = &Error{Code: CodeProcessAlreadyActive, Message: "stall already has an open allocation process"}
	ErrProcessNotAcceptingEntries = &Error{Code: CodeProcessNotAcceptingEntries, Message: "process is not accepting entries"}
	ErrNotYetExpired              = &Error{Code: CodeNotYetExpired, Message: "process has not expired yet"}
	ErrAlreadyTerminal            = &Error{Code: CodeAlreadyTerminal, Message: "process is already resolved or cancelled"}
	ErrMaxDurationExceeded        = &Error{Code: CodeMaxDurationExceeded, Message: "total duration would exceed the maximum"}
	ErrDuplicateParticipant       = &Error{Code: CodeDuplicateParticipant, Message: "claimant already entered this process"}
	ErrBidTooLow                  = &Error{Code: CodeBidTooLow, Message: "bid is below the required minimum"}
	ErrBidSuperseded              = &Error{Code: CodeBidSuperseded, Message: "bid was outbid by a concurrent bid"}
	ErrNotFound                   = &Error{Code: CodeNotFound, Message: "not found"}
	ErrForbidden                  = &Error{Code: CodeForbidden, Message: "actor may not manage this branch"}
	ErrInvalidArgument            = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
)

// NewError creates a domain error with a code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates a domain error carrying metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func invalidArgument(message string) *Error {
	return NewError(CodeInvalidArgument, message)
}

// CodeOf returns the domain code of err, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsDomain reports whether err carries a domain code. Domain errors are
// final and never retried.
func IsDomain(err error) bool {
	return CodeOf(err) != CodeUnknown
}
