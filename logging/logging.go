// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package logging holds the process default structured logger, shared by the
// perf, raf and hrtimer packages.
//
// Every package also accepts a logger directly, via its WithLogger option,
// which takes precedence over the default configured here.
//
// Usage:
//
//	// route all go-hrtime logs through your own logiface logger
//	logging.SetDefault(myLogger)
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// DefaultRateLimits are the per call site limits applied to log events that
// opt in via [logiface.Builder.Limit], e.g. repeated frame callback faults.
var DefaultRateLimits = map[time.Duration]int{
	time.Second: 10,
	time.Minute: 120,
}

var global struct {
	logger *logiface.Logger[logiface.Event]
	sync.RWMutex
}

// New builds a JSON logger writing to w, at the given level, using stumpy as
// the backend, with [DefaultRateLimits] for rate limited events.
func New(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	if w == nil {
		w = os.Stderr
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
		stumpy.L.WithCategoryRateLimits(DefaultRateLimits),
	).Logger()
}

// SetDefault replaces the process default logger. Passing nil restores the
// built-in stderr logger.
func SetDefault(logger *logiface.Logger[logiface.Event]) {
	global.Lock()
	defer global.Unlock()
	global.logger = logger
}

// Default returns the process default logger, lazily initialising it to a
// stderr logger at warning level.
func Default() *logiface.Logger[logiface.Event] {
	global.RLock()
	logger := global.logger
	global.RUnlock()
	if logger != nil {
		return logger
	}

	global.Lock()
	defer global.Unlock()
	if global.logger == nil {
		global.logger = New(os.Stderr, logiface.LevelWarning)
	}
	return global.logger
}

// Resolve returns logger if it is non-nil, otherwise [Default].
func Resolve(logger *logiface.Logger[logiface.Event]) *logiface.Logger[logiface.Event] {
	if logger != nil {
		return logger
	}
	return Default()
}
