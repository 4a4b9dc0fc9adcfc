// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hrtimer

import (
	"errors"
	"fmt"
)

// ErrInvalidDuration is the sentinel wrapped by every [*DurationError].
var ErrInvalidDuration = errors.New("hrtimer: timeout value is invalid: expecting milliseconds")

// DurationError is returned when constructing a [Timer] with a duration that
// is not a positive, finite number of milliseconds, representable in
// nanoseconds as an int64.
type DurationError struct {
	// Milliseconds is the rejected value.
	Milliseconds float64
}

// Error implements the error interface.
func (e *DurationError) Error() string {
	return fmt.Sprintf("%s, got %v", ErrInvalidDuration.Error(), e.Milliseconds)
}

// Unwrap returns [ErrInvalidDuration].
func (e *DurationError) Unwrap() error {
	return ErrInvalidDuration
}
