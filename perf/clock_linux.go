// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package perf

import (
	"golang.org/x/sys/unix"
)

// platformNanotime reads CLOCK_MONOTONIC directly, falling back to the
// runtime clock if it is unavailable (e.g. seccomp restricted sandboxes).
func platformNanotime() func() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return runtimeNanotime
	}
	return clockMonotonic
}

func clockMonotonic() int64 {
	var ts unix.Timespec
	// a failed read yields zero, which the source clamps
	_ = unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	return ts.Nano()
}
