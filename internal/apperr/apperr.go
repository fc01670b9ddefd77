// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package apperr classifies pipeline failures so callers can decide whether
// to retry, skip a record, skip a paper, or abort.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure category.
type Kind string

const (
	// Transport covers network failures and non-2xx responses. Adapters
	// retry these and surface them after the last attempt.
	Transport Kind = "transport"

	// Parse covers malformed source payloads. A bad record is skipped.
	Parse Kind = "parse"

	// Duplicate marks a uniqueness violation on insert, absorbed as a skip.
	Duplicate Kind = "duplicate"

	// Worker covers failed worker calls: spawn errors, non-zero exit,
	// timeouts, and error responses.
	Worker Kind = "worker"

	// NotFound means the requested paper or record does not exist.
	NotFound Kind = "not_found"

	// Validation means the caller supplied bad input.
	Validation Kind = "validation"

	// Fatal covers configuration and database failures that abort the run.
	Fatal Kind = "fatal"
)

// Error is a categorized error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a categorized error from a format string.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err's chain carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
