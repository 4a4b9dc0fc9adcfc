// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package raf

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrInvalidFrameInterval is returned by [New] when the frame interval is
	// not positive.
	ErrInvalidFrameInterval = errors.New("raf: frame interval must be positive")

	// ErrNilHost is returned by [New] when [WithHost] is given a nil host.
	ErrNilHost = errors.New("raf: host must not be nil")

	// ErrNilLoop is returned by [NewLoopHost] when the loop is nil.
	ErrNilLoop = errors.New("raf: loop must not be nil")
)

// CallbackPanicError wraps a panic recovered from a [FrameCallback]. It is
// delivered to the scheduler's fault handler, asynchronously, after the
// flush that raised it.
type CallbackPanicError struct {
	// Value is the value passed to panic.
	Value any

	// Stack is the stack trace of the panicking goroutine, captured in the
	// deferred recover.
	Stack []byte

	// Handle identifies the request whose callback panicked.
	Handle Handle
}

// Error implements the error interface.
func (e *CallbackPanicError) Error() string {
	return fmt.Sprintf("raf: frame callback %d panicked: %v", e.Handle, e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *CallbackPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
