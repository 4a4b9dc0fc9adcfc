// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package raf implements a requestAnimationFrame style frame scheduler for
// environments without a native frame pacing primitive.
//
// Callbacks registered with [Scheduler.Schedule] are batched and flushed
// together, no more often than once per frame interval ([FrameInterval] by
// default). Every callback in a flush receives the same timestamp.
//
// # Hosts
//
// A [Host] decides where deferred flushes run:
//   - [TimerHost] (the default) uses [time.AfterFunc]; the scheduler
//     serialises flushes itself.
//   - [NewLoopHost] runs every flush on a go-eventloop loop goroutine,
//     alongside the loop's other tasks.
//
// # Faults
//
// A panicking callback does not affect the rest of its batch. The panic is
// recovered and wrapped in a [*CallbackPanicError], which is handed to the
// fault handler (see [WithFaultHandler]) via the host, after the flush.
//
// # Usage
//
//	h := raf.RequestAnimationFrame(func(ts int64) {
//	    fmt.Println("frame at", time.Duration(ts))
//	})
//	// changed our mind
//	raf.CancelAnimationFrame(h)
package raf
