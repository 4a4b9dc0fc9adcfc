// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package raf

import (
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-hrtime/logging"
	"github.com/joeycumines/logiface"
)

// Host defers work. A [Scheduler] uses it to arm flushes and to report
// callback faults outside of the flush.
//
// Implementations must eventually call fn exactly once, on some goroutine
// other than the caller's stack, no sooner than d has elapsed.
type Host interface {
	AfterFunc(d time.Duration, fn func())
}

// HostFunc adapts a function to the [Host] interface.
type HostFunc func(d time.Duration, fn func())

// AfterFunc calls f(d, fn).
func (f HostFunc) AfterFunc(d time.Duration, fn func()) { f(d, fn) }

type timerHost struct{}

// TimerHost returns the default host, backed by [time.AfterFunc]. Each
// deferred function runs on its own goroutine.
func TimerHost() Host { return timerHost{} }

func (timerHost) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// LoopHost runs deferred work on an [eventloop.Loop] goroutine, via
// [eventloop.Loop.Submit]. Delays are measured by runtime timers, which
// submit on expiry.
//
// The loop must be running (or about to be run) for work to execute. Work
// rejected by the loop, e.g. after shutdown, is dropped with a warning.
type LoopHost struct {
	loop   *eventloop.Loop
	logger *logiface.Logger[logiface.Event]
}

// NewLoopHost returns a Host that runs work on the given loop.
func NewLoopHost(loop *eventloop.Loop) (*LoopHost, error) {
	if loop == nil {
		return nil, ErrNilLoop
	}
	return &LoopHost{loop: loop}, nil
}

// WithLogger returns a copy of the host that logs rejected work to logger,
// instead of logging.Default.
func (h *LoopHost) WithLogger(logger *logiface.Logger[logiface.Event]) *LoopHost {
	c := *h
	c.logger = logger
	return &c
}

// AfterFunc implements [Host].
func (h *LoopHost) AfterFunc(d time.Duration, fn func()) {
	if d <= 0 {
		h.submit(fn)
		return
	}
	time.AfterFunc(d, func() { h.submit(fn) })
}

func (h *LoopHost) submit(fn func()) {
	if err := h.loop.Submit(func() { fn() }); err != nil {
		logging.Resolve(h.logger).Warning().
			Err(err).
			Log("raf: loop rejected deferred work")
	}
}
