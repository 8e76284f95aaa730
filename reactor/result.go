// Package reactor implements the single-threaded, epoll-backed event
// loop that drives the rest of this module: one-shot callback handles,
// a cancellable stop token, a deadline-ordered timer heap, and the
// reactor loop itself.
package reactor

import (
	"errors"
	"fmt"
)

// Result wraps either a value or an OS-error-shaped failure, standing
// in for the C++ source's errno-tagged Expected<T>.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok builds a successful Result.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Errorf builds a failed Result.
func Errorf[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// IsError reports whether the result carries err specifically (or wraps it).
func (r Result[T]) IsError(target error) bool {
	return errors.Is(r.Err, target)
}

// Error reports whether the result carries any failure.
func (r Result[T]) Error() bool {
	return r.Err != nil
}

// Must extracts the value, panicking with msg on failure — the Go
// analogue of the source's fatal .expect(msg).
func (r Result[T]) Must(msg string) T {
	if r.Err != nil {
		panic(fmt.Sprintf("%s: %v", msg, r.Err))
	}
	return r.Value
}
