// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package perf provides a high resolution monotonic clock, a User Timing
// style [Timeline] of marks and measures, and [Performance], a single slot
// stopwatch built on top of it.
//
// # Clock
//
// [Now] returns nanoseconds since package initialisation. On Linux, it reads
// CLOCK_MONOTONIC directly, otherwise it uses the monotonic reading carried by
// [time.Time]. Either way, returned values never decrease.
//
// # Stopwatch
//
// Each [Performance.Start] and [Performance.Stop] pair records two uniquely
// named marks, measures between them, and then clears the intermediate
// entries, so the only retained state is the most recent duration:
//
//	p := perf.NewPerformance()
//	p.Start()
//	doWork()
//	p.Stop()
//	if ms, ok := p.Results().DurationMs(); ok {
//	    fmt.Printf("took %.3fms\n", ms)
//	}
//
// Calling Start twice, or Stop without Start, logs an error (see the logging
// package) and otherwise does nothing. Use [Performance.TryStart] and
// [Performance.TryStop] to receive the error instead.
package perf
