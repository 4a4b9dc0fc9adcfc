// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package raf

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/go-hrtime/logging"
	"github.com/joeycumines/go-hrtime/perf"
	"github.com/joeycumines/logiface"
)

// FrameInterval is the default nominal spacing between flushes, one 60Hz
// frame.
const FrameInterval = time.Second / 60

// Handle identifies a frame request, for use with [Scheduler.Cancel].
// Handles are unique and strictly increasing per [Scheduler], and are never
// zero.
type Handle uint64

// FrameCallback receives the flush timestamp, i.e. the time (on the
// scheduler's clock, perf.Now by default) the flush was scheduled to fire.
// Every callback in the same flush receives the same value.
type FrameCallback func(timestamp int64)

// Stats is a point in time snapshot of scheduler counters.
type Stats struct {
	// Flushes counts completed and in-progress flushes.
	Flushes uint64

	// Invoked counts callbacks that were called, including those that
	// panicked.
	Invoked uint64

	// Cancelled counts requests cancelled before their flush.
	Cancelled uint64

	// Faults counts callbacks that panicked.
	Faults uint64
}

type frameRequest struct {
	callback  FrameCallback
	handle    Handle
	cancelled bool
}

var defaultScheduler = sync.OnceValue(func() *Scheduler {
	s, err := New()
	if err != nil {
		panic(err)
	}
	return s
})

// Default returns the process-wide shared scheduler, created on first use,
// with default options.
func Default() *Scheduler {
	return defaultScheduler()
}

// RequestAnimationFrame schedules callback on the [Default] scheduler.
func RequestAnimationFrame(callback FrameCallback) Handle {
	return Default().Schedule(callback)
}

// CancelAnimationFrame cancels a request made via [RequestAnimationFrame].
func CancelAnimationFrame(handle Handle) {
	Default().Cancel(handle)
}

// Scheduler batches frame callbacks, flushing them at most once per frame
// interval, in the manner of requestAnimationFrame.
//
// Scheduling onto an empty queue arms a single deferred flush on the [Host].
// The flush snapshots and clears the queue, then invokes each non-cancelled
// callback in scheduling order. Callbacks scheduled during a flush join the
// next batch.
//
// Thread Safety:
// All methods are safe for concurrent use. Flushes are serialised, so no two
// callbacks of the same scheduler run concurrently. No lock is held while
// callbacks run, so they may call back into the scheduler.
type Scheduler struct { //nolint:govet // betteralign:ignore
	host      Host
	now       func() int64
	onFault   func(err error)
	logger    *logiface.Logger[logiface.Event]
	queue     *queue.Queue // of *frameRequest, guarded by mu
	spare     *queue.Queue // drained batch, reused, guarded by runMu
	interval  int64
	lastFlush int64
	handle    Handle

	flushes   atomic.Uint64
	invoked   atomic.Uint64
	cancelled atomic.Uint64
	faults    atomic.Uint64

	mu    sync.Mutex
	runMu sync.Mutex
}

// New creates a Scheduler. With no options, it uses [TimerHost], perf.Now
// and [FrameInterval], and logs faults.
func New(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		host:     cfg.host,
		now:      cfg.now,
		onFault:  cfg.onFault,
		logger:   cfg.logger,
		queue:    queue.New(),
		spare:    queue.New(),
		interval: int64(cfg.frameInterval),
	}
	if s.host == nil {
		s.host = TimerHost()
	}
	if s.now == nil {
		s.now = perf.Now
	}
	if s.onFault == nil {
		s.onFault = s.logFault
	}
	return s, nil
}

// Schedule queues callback for the next flush, returning its handle. A nil
// callback is ignored, and the zero Handle returned.
//
// The flush may run on another goroutine, e.g. with [TimerHost], and may
// start before Schedule returns, so callback must not rely on its caller
// having stored the handle.
func (s *Scheduler) Schedule(callback FrameCallback) Handle {
	if callback == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.Length() == 0 {
		now := s.now()
		delay := max(0, s.interval-(now-s.lastFlush))
		at := now + delay
		s.lastFlush = at
		s.host.AfterFunc(time.Duration(delay), func() { s.flush(at) })
	}

	s.handle++
	s.queue.Add(&frameRequest{
		callback: callback,
		handle:   s.handle,
	})
	return s.handle
}

// Cancel prevents a queued callback from running. It is a no-op if the
// handle is unknown, was already flushed, or was already cancelled.
func (s *Scheduler) Cancel(handle Handle) {
	if handle == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < s.queue.Length(); i++ {
		if req := s.queue.Get(i).(*frameRequest); req.handle == handle {
			if !req.cancelled {
				req.cancelled = true
				s.cancelled.Add(1)
			}
			return
		}
	}
}

// Pending returns the number of queued, non-cancelled requests.
func (s *Scheduler) Pending() (n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < s.queue.Length(); i++ {
		if !s.queue.Get(i).(*frameRequest).cancelled {
			n++
		}
	}
	return
}

// Stats returns the current counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Flushes:   s.flushes.Load(),
		Invoked:   s.invoked.Load(),
		Cancelled: s.cancelled.Load(),
		Faults:    s.faults.Load(),
	}
}

func (s *Scheduler) flush(at int64) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	batch := s.queue
	s.queue = s.spare
	s.mu.Unlock()

	s.flushes.Add(1)

	// cancellation only applies to queued requests, so the batch is now
	// private to this flush
	for batch.Length() > 0 {
		if req := batch.Remove().(*frameRequest); !req.cancelled {
			s.invoke(req, at)
		}
	}

	s.spare = batch
}

func (s *Scheduler) invoke(req *frameRequest, at int64) {
	defer func() {
		if r := recover(); r != nil {
			s.faults.Add(1)
			err := &CallbackPanicError{
				Value:  r,
				Stack:  debug.Stack(),
				Handle: req.handle,
			}
			s.host.AfterFunc(0, func() { s.onFault(err) })
		}
	}()
	s.invoked.Add(1)
	req.callback(at)
}

func (s *Scheduler) logFault(err error) {
	b := logging.Resolve(s.logger).Err().
		Limit().
		Err(err)
	if e, ok := err.(*CallbackPanicError); ok {
		b = b.Uint64("handle", uint64(e.Handle)).
			Str("stack", string(e.Stack))
	}
	b.Log("raf: frame callback panicked")
}
