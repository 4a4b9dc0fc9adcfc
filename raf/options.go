// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package raf

import (
	"time"

	"github.com/joeycumines/logiface"
)

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	host          Host
	now           func() int64
	onFault       func(err error)
	logger        *logiface.Logger[logiface.Event]
	frameInterval time.Duration
}

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// schedulerOptionImpl implements Option.
type schedulerOptionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (s *schedulerOptionImpl) applyScheduler(opts *schedulerOptions) error {
	return s.applySchedulerFunc(opts)
}

// WithHost sets the host used to defer flushes and fault reports.
// Defaults to [TimerHost].
func WithHost(host Host) Option {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		if host == nil {
			return ErrNilHost
		}
		opts.host = host
		return nil
	}}
}

// WithClock overrides the clock, which must return monotonic nanoseconds,
// like perf.Now. A nil value restores the default.
func WithClock(now func() int64) Option {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		opts.now = now
		return nil
	}}
}

// WithFrameInterval sets the nominal spacing between flushes.
// Defaults to [FrameInterval].
func WithFrameInterval(d time.Duration) Option {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		if d <= 0 {
			return ErrInvalidFrameInterval
		}
		opts.frameInterval = d
		return nil
	}}
}

// WithFaultHandler sets the function that receives a [*CallbackPanicError]
// for each panicking callback. It is called via the host, never from within
// a flush. The default logs the error.
func WithFaultHandler(fn func(err error)) Option {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		opts.onFault = fn
		return nil
	}}
}

// WithLogger sets the logger used by the default fault handler.
// Defaults to logging.Default, resolved at the time of each log.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolveOptions applies Option instances to schedulerOptions.
func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		frameInterval: FrameInterval,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
