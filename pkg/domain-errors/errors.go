// Package domainerrors carries the stable error kinds the ingestion pipeline
// reports to its callers.
//
// Services translate infrastructure facts (pkg/platform/sentinel) into one of
// these codes. Transport layers map a code to a status and render it; the code
// string itself is part of the public wire contract and must not change.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error kind.
type Code string

const (
	// Pipeline kinds.
	CodeAmbiguousInput       Code = "ambiguous_input"
	CodeInvalidCategory      Code = "invalid_category"
	CodeClassificationFailed Code = "classification_failed"
	CodeMergeConflict        Code = "merge_conflict"
	CodePublishFailed        Code = "publish_failed"
	CodeCancelled            Code = "cancelled"

	// Generic kinds.
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_error"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeRateLimited  Code = "rate_limited"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal"
)

// Error is a coded error with an operator-facing message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to err. A nil err still produces an error
// so callers can wrap conditionally built causes.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost coded error in err's chain has code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// Is is an alias for HasCode kept for call sites that read better as a predicate.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the operator-facing message of err, falling back to err.Error().
func MessageOf(err error) string {
	if de, ok := As(err); ok {
		return de.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
