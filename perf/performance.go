// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package perf

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/go-hrtime/logging"
	"github.com/joeycumines/logiface"
)

const (
	msgAlreadyStarted = "Performance.Start() can only be called once"
	msgNotStarted     = "Performance.Stop() can only be called once after Performance.Start()"
)

// Sequencing errors, returned by [Performance.TryStart] and
// [Performance.TryStop], and logged by [Performance.Start] and
// [Performance.Stop].
var (
	// ErrAlreadyStarted indicates Start was called while a measurement was
	// already open.
	ErrAlreadyStarted = errors.New("perf: " + msgAlreadyStarted)

	// ErrNotStarted indicates Stop was called without an open measurement.
	ErrNotStarted = errors.New("perf: " + msgNotStarted)
)

// Option configures a [Performance] instance.
type Option func(*performanceOptions)

type performanceOptions struct {
	logger *logiface.Logger[logiface.Event]
	now    func() int64
	newID  func() string
}

// WithLogger sets the logger used to report sequencing errors. Defaults to
// [logging.Default], resolved at the time of each log.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(o *performanceOptions) {
		o.logger = logger
	}
}

// WithClock overrides the clock, which must behave like [Now].
func WithClock(now func() int64) Option {
	return func(o *performanceOptions) {
		o.now = now
	}
}

// Results is the outcome of the most recent completed start/stop pair.
type Results struct {
	// Duration is the measured span in nanoseconds, or nil if no pair has
	// completed yet.
	Duration *int64
}

// DurationMs returns the duration in (fractional) milliseconds, and false if
// there is no duration.
func (r Results) DurationMs() (float64, bool) {
	if r.Duration == nil {
		return 0, false
	}
	return float64(*r.Duration) / float64(time.Millisecond), true
}

// String formats the duration, or "<nil>".
func (r Results) String() string {
	if r.Duration == nil {
		return "<nil>"
	}
	return time.Duration(*r.Duration).String()
}

// Performance is a single slot stopwatch, built on a private [Timeline].
//
// Each Start records a uniquely named mark, and the matching Stop records a
// second mark and measures between them. The resulting duration is captured
// by an observer on the timeline, and is available via [Performance.Results].
//
// Misuse (Start twice, or Stop without Start) is not fatal: it is logged, the
// call is a no-op, and prior state is preserved.
//
// Thread Safety:
// Safe for concurrent use, but there is only one open measurement at a time,
// so callers must serialise start/stop pairs per logical measurement.
type Performance struct { //nolint:govet // betteralign:ignore
	timeline  *Timeline
	logger    *logiface.Logger[logiface.Event]
	newID     func() string
	duration  atomic.Pointer[int64]
	startMark string
	mu        sync.Mutex
}

// NewPerformance creates a stopwatch with no open measurement, and a nil
// duration.
func NewPerformance(opts ...Option) *Performance {
	var o performanceOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}

	p := &Performance{
		timeline: newTimeline(o.now),
		logger:   o.logger,
		newID:    o.newID,
	}
	p.timeline.Observe(p.observe, EntryMeasure)
	return p
}

func (p *Performance) observe(entries []Entry, _ *Observer) {
	for _, entry := range entries {
		d := entry.Duration
		p.duration.Store(&d)
	}
}

// Start opens a measurement. If one is already open, the error is logged and
// nothing changes.
func (p *Performance) Start() {
	if err := p.TryStart(); err != nil {
		p.logSequencing(msgAlreadyStarted, err)
	}
}

// TryStart is [Performance.Start], but returns [ErrAlreadyStarted] instead of
// logging it.
func (p *Performance) TryStart() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.startMark != "" {
		return ErrAlreadyStarted
	}

	p.startMark = p.newID()
	p.timeline.Mark(p.startMark)
	return nil
}

// Stop closes the open measurement, updating [Performance.Results]. If no
// measurement is open, the error is logged and nothing changes.
func (p *Performance) Stop() {
	if err := p.TryStop(); err != nil {
		msg := msgNotStarted
		if !errors.Is(err, ErrNotStarted) {
			msg = "perf: stop failed: " + err.Error()
		}
		p.logSequencing(msg, err)
	}
}

// TryStop is [Performance.Stop], but returns [ErrNotStarted] instead of
// logging it. If the start mark was cleared from the timeline, the pair is
// still closed, and the [*MarkNotFoundError] returned.
func (p *Performance) TryStop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.startMark == "" {
		return ErrNotStarted
	}

	startMark := p.startMark
	stopMark := p.newID()
	measure := "internal-" + startMark + "-" + stopMark

	p.timeline.Mark(stopMark)
	_, err := p.timeline.Measure(measure, startMark, stopMark)

	p.startMark = ""
	p.timeline.ClearMarks(startMark)
	p.timeline.ClearMarks(stopMark)
	p.timeline.ClearMeasures(measure)

	return err
}

// Results returns the duration of the most recent completed pair.
func (p *Performance) Results() Results {
	return Results{Duration: p.duration.Load()}
}

func (p *Performance) logSequencing(msg string, err error) {
	logging.Resolve(p.logger).Err().
		Err(err).
		Log(msg)
}
