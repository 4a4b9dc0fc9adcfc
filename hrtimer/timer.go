// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hrtimer

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/joeycumines/go-hrtime/logging"
	"github.com/joeycumines/go-hrtime/perf"
	"github.com/joeycumines/go-hrtime/raf"
	"github.com/joeycumines/logiface"
)

// Timer is a countdown, polled once per frame by a [FrameScheduler], that
// emits start, tick, complete and cancel events.
//
// A run begins with [Timer.Start], which fixes the target time. Each poll
// that fires before the target time counts a tick and schedules the next
// poll. The first poll at or after the target time completes the run.
//
// Cancellation is cooperative: [Timer.Cancel] only requests it, and the run
// completes at the next poll, so one further poll always occurs, and exactly
// one complete event follows any accepted cancel.
//
// Thread Safety:
// Timer is safe for concurrent use. Events are delivered with no timer locks
// held, so handlers may call any Timer method.
type Timer struct { //nolint:govet // betteralign:ignore
	scheduler  FrameScheduler
	now        func() int64
	logger     *logiface.Logger[logiface.Event]
	done       chan struct{}
	listeners  listeners
	durationNs int64
	targetTime int64
	startedAt  int64
	totalTicks uint64
	run        uint64
	pending    raf.Handle
	hasPending bool
	state      stateMachine
	mu         sync.Mutex
}

// New creates an idle Timer that runs for durationMs milliseconds once
// started. It fails with a [*DurationError] unless durationMs is positive,
// finite, and representable as an int64 number of nanoseconds.
func New(durationMs float64, opts ...Option) (*Timer, error) {
	ns, ok := millisToNanos(durationMs)
	if !ok {
		return nil, &DurationError{Milliseconds: durationMs}
	}
	return newTimer(ns, opts), nil
}

// NewDuration is [New] with the duration given as a [time.Duration].
func NewDuration(d time.Duration, opts ...Option) (*Timer, error) {
	if d <= 0 {
		return nil, &DurationError{Milliseconds: float64(d) / float64(time.Millisecond)}
	}
	return newTimer(int64(d), opts), nil
}

func millisToNanos(ms float64) (int64, bool) {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms <= 0 {
		return 0, false
	}
	ns := math.Round(ms * float64(time.Millisecond))
	if ns < 1 || ns >= float64(math.MaxInt64) {
		return 0, false
	}
	return int64(ns), true
}

func newTimer(durationNs int64, opts []Option) *Timer {
	var o timerOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.scheduler == nil {
		o.scheduler = raf.Default()
	}
	if o.now == nil {
		o.now = perf.Now
	}
	return &Timer{
		scheduler:  o.scheduler,
		now:        o.now,
		logger:     o.logger,
		done:       make(chan struct{}),
		durationNs: durationNs,
	}
}

// Start begins a run, from the idle or complete state, emitting
// [EventStart]. It is ignored while a run is in progress.
func (t *Timer) Start() *Timer {
	t.mu.Lock()
	from := t.state.Load()
	if !t.state.TryTransition(from, StateRunning) {
		t.mu.Unlock()
		return t
	}
	now := t.now()
	t.startedAt = now
	t.targetTime = now + t.durationNs
	t.totalTicks = 0
	t.run++
	run := t.run
	if from == StateComplete {
		t.done = make(chan struct{})
	}
	t.mu.Unlock()

	logging.Resolve(t.logger).Debug().
		Dur("duration", time.Duration(t.durationNs)).
		Int64("target_time", now+t.durationNs).
		Log("hrtimer: started")

	defer t.schedulePoll(run)
	t.listeners.emit(EventStart, t)
	return t
}

// Cancel requests cancellation of the current run, emitting [EventCancel].
// The run completes at its next poll. It is ignored unless the timer is
// running and not already cancelling.
func (t *Timer) Cancel() *Timer {
	t.mu.Lock()
	ok := t.state.TryTransition(StateRunning, StateCancelling)
	t.mu.Unlock()
	if ok {
		t.listeners.emit(EventCancel, t)
	}
	return t
}

func (t *Timer) schedulePoll(run uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run != run || !t.state.Load().active() {
		return
	}
	t.pending = t.scheduler.Schedule(func(ts int64) { t.poll(run, ts) })
	t.hasPending = true
}

func (t *Timer) poll(run uint64, ts int64) {
	t.mu.Lock()
	state := t.state.Load()
	if t.run != run || !state.active() {
		t.mu.Unlock()
		return
	}

	if state == StateRunning && ts < t.targetTime {
		t.totalTicks++
		t.pending, t.hasPending = 0, false
		t.mu.Unlock()
		defer t.schedulePoll(run)
		t.listeners.emit(EventTick, t)
		return
	}

	t.state.TryTransition(state, StateComplete)
	pending, hasPending := t.pending, t.hasPending
	t.pending, t.hasPending = 0, false
	ticks := t.totalTicks
	elapsed := t.now() - t.startedAt
	done := t.done
	t.mu.Unlock()

	if hasPending {
		t.scheduler.Cancel(pending)
	}

	logging.Resolve(t.logger).Debug().
		Uint64("ticks", ticks).
		Dur("elapsed", time.Duration(elapsed)).
		Str("via", state.String()).
		Log("hrtimer: complete")

	defer close(done)
	t.listeners.emit(EventComplete, t)
}

// Subscribe registers handler for kind, returning the timer for chaining.
// Handlers run in subscription order.
func (t *Timer) Subscribe(kind EventKind, handler Handler) *Timer {
	t.listeners.add(kind, handler)
	return t
}

// AddListener is [Timer.Subscribe], but returns an ID for use with
// [Timer.Unsubscribe]. A nil handler is ignored, and 0 returned.
func (t *Timer) AddListener(kind EventKind, handler Handler) ListenerID {
	return t.listeners.add(kind, handler)
}

// Unsubscribe removes the handler registered under id, if any.
func (t *Timer) Unsubscribe(kind EventKind, id ListenerID) *Timer {
	t.listeners.remove(kind, id)
	return t
}

// UnsubscribeAll removes all handlers for kind, or for every kind if kind is
// empty.
func (t *Timer) UnsubscribeAll(kind EventKind) *Timer {
	t.listeners.removeAll(kind)
	return t
}

// Done returns a channel that is closed when the current run completes,
// after its complete handlers have returned. An idle timer's channel closes
// on completion of its first run. A complete timer's channel stays closed
// until the next [Timer.Start].
func (t *Timer) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Wait blocks until the channel returned by [Timer.Done] is closed, or ctx is
// done, in which case it returns ctx.Err().
func (t *Timer) Wait(ctx context.Context) error {
	select {
	case <-t.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current state.
func (t *Timer) State() State {
	return t.state.Load()
}

// Running reports whether a run is in progress, including while cancelling.
func (t *Timer) Running() bool {
	return t.state.Load().active()
}

// Cancelling reports whether cancellation has been requested for the
// current run.
func (t *Timer) Cancelling() bool {
	return t.state.Load() == StateCancelling
}

// TotalTicks returns the number of ticks in the current or last run.
func (t *Timer) TotalTicks() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalTicks
}

// TargetTime returns the completion time of the current or last run, on the
// timer's clock, or 0 if never started.
func (t *Timer) TargetTime() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.targetTime
}

// DurationNs returns the configured duration, in nanoseconds.
func (t *Timer) DurationNs() int64 {
	return t.durationNs
}

// PendingHandle returns the scheduler handle of the next poll, if any. It
// reports none while tick handlers run, as the next poll is scheduled after
// they return.
func (t *Timer) PendingHandle() (raf.Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending, t.hasPending
}
