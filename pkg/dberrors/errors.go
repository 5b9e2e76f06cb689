// Package dberrors is the typed error taxonomy used across the storage
// gateway and everything downstream of it, so callers can branch on
// retryability with errors.Is/errors.As instead of string matching.
package dberrors

import (
	"errors"
	"fmt"
)

// Sentinel classes from spec §4.1 / §7.
var (
	// ErrNotFound is returned when a keyed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness
	// invariant the caller must resolve (e.g. duplicate active rule).
	ErrConflict = errors.New("conflict")

	// ErrFKViolation is returned when a message (or other dependent row)
	// references a contact/chat/group that does not exist yet. Distinct
	// from ErrTransient: triggers a one-shot dependency-materialization
	// retry rather than a bare retry.
	ErrFKViolation = errors.New("foreign key dependency missing")

	// ErrTransient is returned for retriable infrastructure failures
	// (DB timeout, connection reset).
	ErrTransient = errors.New("transient storage error")

	// ErrPermanent is returned for failures that indicate a bug and must
	// not be retried (e.g. a rule references a nonexistent parser).
	ErrPermanent = errors.New("permanent storage error")
)

// Error wraps one of the sentinel classes with operation context.
type Error struct {
	Op    string // e.g. "upsertMessage", "leaseQueueBatch"
	Class error  // one of the sentinels above
	Err   error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Class, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Class)
}

func (e *Error) Unwrap() error { return e.Class }

// New builds a classified Error.
func New(op string, class error, cause error) *Error {
	return &Error{Op: op, Class: class, Err: cause}
}

// NotFound wraps cause (or nil) as ErrNotFound for op.
func NotFound(op string, cause error) error { return New(op, ErrNotFound, cause) }

// Conflict wraps cause (or nil) as ErrConflict for op.
func Conflict(op string, cause error) error { return New(op, ErrConflict, cause) }

// FKViolation wraps cause as ErrFKViolation for op.
func FKViolation(op string, cause error) error { return New(op, ErrFKViolation, cause) }

// Transient wraps cause as ErrTransient for op.
func Transient(op string, cause error) error { return New(op, ErrTransient, cause) }

// Permanent wraps cause as ErrPermanent for op.
func Permanent(op string, cause error) error { return New(op, ErrPermanent, cause) }

// IsRetryable reports whether err should be retried by a queue worker
// (transient and FK-dependency errors are; conflicts, not-found, and
// permanent errors are not).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrFKViolation)
}
