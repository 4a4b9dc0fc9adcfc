// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hrtimer

import (
	"github.com/joeycumines/go-hrtime/raf"
	"github.com/joeycumines/logiface"
)

// FrameScheduler drives a [Timer]'s polls. It is implemented by
// [*raf.Scheduler].
type FrameScheduler interface {
	Schedule(callback raf.FrameCallback) raf.Handle
	Cancel(handle raf.Handle)
}

// Option configures a [Timer].
type Option func(*timerOptions)

type timerOptions struct {
	scheduler FrameScheduler
	now       func() int64
	logger    *logiface.Logger[logiface.Event]
}

// WithScheduler sets the scheduler used to poll. Defaults to [raf.Default].
func WithScheduler(scheduler FrameScheduler) Option {
	return func(o *timerOptions) {
		o.scheduler = scheduler
	}
}

// WithClock overrides the clock used to compute the target time. It must
// share its timescale with the scheduler's flush timestamps, which are
// perf.Now unless the scheduler was configured otherwise.
func WithClock(now func() int64) Option {
	return func(o *timerOptions) {
		o.now = now
	}
}

// WithLogger sets the logger used for debug lifecycle logs. Defaults to
// logging.Default, resolved at the time of each log.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(o *timerOptions) {
		o.logger = logger
	}
}
