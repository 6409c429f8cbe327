// Package alexandriaerr defines the error kinds shared across Alexandria's
// components (spec §7). Semantic errors are values carrying a Kind and a
// human-readable reason; storage-transaction failures are not wrapped here
// and simply propagate as plain wrapped errors.
package alexandriaerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the semantic error categories from spec §7.
type Kind string

const (
	KindInvalidContent    Kind = "invalid_content"
	KindInvalidEnum       Kind = "invalid_enum"
	KindNotFound          Kind = "not_found"
	KindCycleDetected     Kind = "cycle_detected"
	KindSchemaIncompatible Kind = "schema_incompatible"
	KindVectorUnavailable Kind = "vector_unavailable"
	KindRefUnknown        Kind = "ref_unknown"
	KindBudgetExceeded    Kind = "budget_exceeded"
	KindConflictDetected  Kind = "conflict_detected"
)

// Error is a semantic error value: a Kind plus a reason and optional cause.
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is comparisons against a bare Kind-only sentinel built
// with New(kind, "").
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs a semantic error of the given kind.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap constructs a semantic error of the given kind wrapping cause.
func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

// Sentinel is a Kind-only value suitable for errors.Is comparisons, e.g.
// errors.Is(err, alexandriaerr.Sentinel(KindNotFound)).
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
