// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package perf

import (
	"sync/atomic"
	"time"
)

// processStart anchors the portable fallback clock.
var processStart = time.Now()

var defaultSource = newSource(platformNanotime())

// source converts a raw monotonic reading into a non-decreasing offset from
// the reading taken when the source was created.
type source struct {
	read   func() int64
	origin int64
	last   atomic.Int64
}

func newSource(read func() int64) *source {
	return &source{
		read:   read,
		origin: read(),
	}
}

func (x *source) now() int64 {
	v := x.read() - x.origin
	for {
		last := x.last.Load()
		if v <= last {
			return last
		}
		if x.last.CompareAndSwap(last, v) {
			return v
		}
	}
}

// runtimeNanotime uses the monotonic reading carried by [time.Time].
func runtimeNanotime() int64 {
	return int64(time.Since(processStart))
}

// Now returns a monotonic timestamp in nanoseconds, measured from process
// start (more precisely, initialisation of this package).
//
// Values are never lower than any value previously returned within the same
// process. They are not wall-clock time, and are not comparable across
// processes.
//
// Thread Safety: Safe to call concurrently.
func Now() int64 {
	return defaultSource.now()
}

// Since returns the nanoseconds elapsed since t, a value previously returned
// by [Now].
func Since(t int64) int64 {
	return Now() - t
}
