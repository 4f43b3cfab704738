// Package coro provides a single-threaded, update-driven cooperative
// coroutine scheduler, plus its error types.
package coro

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmer-error (precondition violation) paths.
// These are never expected to surface from correct host code; callers that
// observe them have a bug, not a recoverable runtime condition.
var (
	// ErrManagerClosed is returned when an operation is attempted against a
	// Manager that has already been closed.
	ErrManagerClosed = errors.New("coro: manager is closed")
	// ErrUnknownClock is returned by Wait calls (via a panic the coroutine's
	// own recover turns into a Failed state) that reference a clock kind no
	// ClockFunc was ever registered for.
	ErrUnknownClock = errors.New("coro: unknown clock kind")
)

// PanicError wraps a value recovered from a panicking coroutine body.
// Coroutine execution is always run under recover; a panic becomes a Failed
// state with a PanicError as its captured error, exactly as an ordinary
// returned error would.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("coro: coroutine panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is itself an error,
// enabling errors.Is/errors.As through the cause chain.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// AggregateError collects the failures observed by an All combinator whose
// children completed with more than one error; it is the error All returns
// in that case. Errors keeps every failure in argument order, Cause returns
// the first, and errors.Is/errors.As match any of them via Unwrap() []error.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "coro: aggregate error (empty)"
	}
	return fmt.Sprintf("coro: %d children failed, first: %v", len(e.Errors), e.Errors[0])
}

// Unwrap supports multi-error matching via errors.Is/errors.As (Go 1.20+).
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// Cause returns the first (in argument order) captured error.
func (e *AggregateError) Cause() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// CoroutineError wraps an error captured from a failed root coroutine with
// the root's id, useful for structured logging.
type CoroutineError struct {
	ID    uint64
	Cause error
}

func (e *CoroutineError) Error() string {
	return fmt.Sprintf("coro: coroutine %d failed: %v", e.ID, e.Cause)
}

func (e *CoroutineError) Unwrap() error {
	return e.Cause
}
