package hrtimer

import (
	"bytes"
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-hrtime/logging"
	"github.com/joeycumines/go-hrtime/raf"
	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64 { return c.now }

type hostTask struct {
	fn func()
	d  time.Duration
}

type manualHost struct {
	tasks []hostTask
	mu    sync.Mutex
}

func (h *manualHost) AfterFunc(d time.Duration, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks = append(h.tasks, hostTask{fn: fn, d: d})
}

func (h *manualHost) pop() (hostTask, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.tasks) == 0 {
		return hostTask{}, false
	}
	task := h.tasks[0]
	h.tasks = h.tasks[1:]
	return task, true
}

func (h *manualHost) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tasks)
}

// fixture drives a timer deterministically, with a fake clock that only
// advances when a deferred flush is run.
type fixture struct {
	t      *testing.T
	clock  *fakeClock
	host   *manualHost
	sched  *raf.Scheduler
	faults []error
}

const startTime = int64(time.Second)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		clock: &fakeClock{now: startTime},
		host:  &manualHost{},
	}
	sched, err := raf.New(
		raf.WithHost(f.host),
		raf.WithClock(f.clock.Now),
		raf.WithFaultHandler(func(err error) { f.faults = append(f.faults, err) }),
	)
	require.NoError(t, err)
	f.sched = sched
	return f
}

func (f *fixture) New(durationMs float64, opts ...Option) *Timer {
	f.t.Helper()
	tm, err := New(durationMs, append([]Option{WithScheduler(f.sched), WithClock(f.clock.Now)}, opts...)...)
	require.NoError(f.t, err)
	return tm
}

// Step advances the clock by the next task's delay, then runs it.
func (f *fixture) Step() {
	f.t.Helper()
	task, ok := f.host.pop()
	if !ok {
		f.t.Fatal("no deferred tasks")
	}
	f.clock.now += int64(task.d)
	task.fn()
}

// Drain steps until nothing is deferred, returning the number of steps.
func (f *fixture) Drain() (steps int) {
	f.t.Helper()
	for f.host.Len() > 0 {
		if steps > 10000 {
			f.t.Fatal("timer did not settle")
		}
		f.Step()
		steps++
	}
	return
}

type recorder struct {
	events []EventKind
	ticks  []uint64
}

func record(tm *Timer) *recorder {
	r := &recorder{}
	for _, kind := range []EventKind{EventStart, EventTick, EventCancel, EventComplete} {
		tm.Subscribe(kind, func(tm *Timer) {
			r.events = append(r.events, kind)
			if kind == EventTick {
				r.ticks = append(r.ticks, tm.TotalTicks())
			}
		})
	}
	return r
}

func (r *recorder) count(kind EventKind) (n int) {
	for _, v := range r.events {
		if v == kind {
			n++
		}
	}
	return
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestNew_invalidDuration(t *testing.T) {
	for _, tc := range []struct {
		name string
		ms   float64
	}{
		{"zero", 0},
		{"negative", -1},
		{"nan", math.NaN()},
		{"positive infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
		{"overflow", 1e300},
		{"sub nanosecond", 1e-9},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tm, err := New(tc.ms)
			assert.Nil(t, tm)
			assert.ErrorIs(t, err, ErrInvalidDuration)
			var durationErr *DurationError
			require.ErrorAs(t, err, &durationErr)
			if !math.IsNaN(tc.ms) {
				assert.Equal(t, tc.ms, durationErr.Milliseconds)
			}
			assert.Contains(t, err.Error(), "timeout value is invalid: expecting milliseconds")
		})
	}
}

func TestNew_validDuration(t *testing.T) {
	f := newFixture(t)

	tm := f.New(200)
	assert.Equal(t, int64(200*time.Millisecond), tm.DurationNs())
	assert.Equal(t, StateIdle, tm.State())
	assert.False(t, tm.Running())
	assert.Equal(t, uint64(0), tm.TotalTicks())
	assert.Equal(t, int64(0), tm.TargetTime())
	_, ok := tm.PendingHandle()
	assert.False(t, ok)

	tm = f.New(0.5)
	assert.Equal(t, int64(500*time.Microsecond), tm.DurationNs())
}

func TestNewDuration(t *testing.T) {
	_, err := NewDuration(0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = NewDuration(-time.Second)
	var durationErr *DurationError
	require.ErrorAs(t, err, &durationErr)
	assert.Equal(t, -1000.0, durationErr.Milliseconds)

	tm, err := NewDuration(time.Second, WithScheduler(newFixture(t).sched))
	require.NoError(t, err)
	assert.Equal(t, int64(time.Second), tm.DurationNs())
}

func TestNew_defaults(t *testing.T) {
	tm, err := New(1, nil)
	require.NoError(t, err)
	assert.Same(t, raf.Default(), tm.scheduler)
	assert.NotNil(t, tm.now)
}

func TestTimer_runToCompletion(t *testing.T) {
	f := newFixture(t)
	tm := f.New(50)
	r := record(tm)

	assert.Same(t, tm, tm.Start())
	assert.Equal(t, StateRunning, tm.State())
	assert.True(t, tm.Running())
	assert.Equal(t, startTime+int64(50*time.Millisecond), tm.TargetTime())
	h, ok := tm.PendingHandle()
	assert.True(t, ok)
	assert.Equal(t, raf.Handle(1), h)

	f.Step()
	h, ok = tm.PendingHandle()
	assert.True(t, ok)
	assert.Equal(t, raf.Handle(2), h)

	// flushes at 0, 1, 2 and 3 frames precede the 50ms target, the 4th
	// completes
	assert.Equal(t, 4, f.Drain())

	assert.Equal(t, []EventKind{
		EventStart,
		EventTick, EventTick, EventTick, EventTick,
		EventComplete,
	}, r.events)
	assert.Equal(t, []uint64{1, 2, 3, 4}, r.ticks)
	assert.Equal(t, uint64(4), tm.TotalTicks())
	assert.Equal(t, StateComplete, tm.State())
	assert.False(t, tm.Running())
	_, ok = tm.PendingHandle()
	assert.False(t, ok)
	assert.True(t, isClosed(tm.Done()))
	assert.NoError(t, tm.Wait(context.Background()))
	assert.Empty(t, f.faults)
}

func TestTimer_pendingHandleDuringTick(t *testing.T) {
	f := newFixture(t)
	tm := f.New(50)

	var seen []bool
	tm.Subscribe(EventTick, func(tm *Timer) {
		_, ok := tm.PendingHandle()
		seen = append(seen, ok)
	})
	tm.Start()

	f.Step()
	assert.Equal(t, []bool{false}, seen)
	h, ok := tm.PendingHandle()
	assert.True(t, ok)
	assert.Equal(t, raf.Handle(2), h)

	f.Drain()
	assert.Equal(t, []bool{false, false, false, false}, seen)
	_, ok = tm.PendingHandle()
	assert.False(t, ok)
}

func TestTimer_tickCountTracksFrames(t *testing.T) {
	for _, tc := range []struct {
		ms    float64
		ticks uint64
	}{
		{1, 1},
		{16, 1},
		{17, 2},
		{100, 7},
		{200, 13},
	} {
		f := newFixture(t)
		tm := f.New(tc.ms)
		tm.Start()
		f.Drain()
		assert.Equal(t, tc.ticks, tm.TotalTicks(), "%vms", tc.ms)
		assert.Equal(t, StateComplete, tm.State())
	}
}

func TestTimer_cancelInFirstTick(t *testing.T) {
	f := newFixture(t)
	tm := f.New(2000)
	r := record(tm)

	tm.Subscribe(EventTick, func(tm *Timer) { tm.Cancel() })
	tm.Start()

	f.Step()
	assert.Equal(t, StateCancelling, tm.State())
	assert.True(t, tm.Running())
	assert.True(t, tm.Cancelling())
	assert.False(t, isClosed(tm.Done()))

	f.Drain()
	assert.Equal(t, []EventKind{EventStart, EventTick, EventCancel, EventComplete}, r.events)
	assert.Equal(t, uint64(1), tm.TotalTicks())
	assert.Equal(t, StateComplete, tm.State())
	assert.False(t, tm.Cancelling())
}

func TestTimer_cancelInStartHandler(t *testing.T) {
	f := newFixture(t)
	tm := f.New(2000)
	r := record(tm)

	tm.Subscribe(EventStart, func(tm *Timer) { tm.Cancel() })
	tm.Start()
	f.Drain()

	assert.Equal(t, []EventKind{EventStart, EventCancel, EventComplete}, r.events)
	assert.Equal(t, uint64(0), tm.TotalTicks())
}

func TestTimer_cancelIgnoredWhenNotRunning(t *testing.T) {
	f := newFixture(t)
	tm := f.New(10)
	r := record(tm)

	assert.Same(t, tm, tm.Cancel())
	assert.Equal(t, StateIdle, tm.State())

	tm.Start()
	f.Drain()
	tm.Cancel()

	assert.Equal(t, StateComplete, tm.State())
	assert.Zero(t, r.count(EventCancel))
}

func TestTimer_cancelTwice(t *testing.T) {
	f := newFixture(t)
	tm := f.New(1000)
	r := record(tm)

	tm.Start()
	f.Step()
	f.Step()
	tm.Cancel().Cancel()
	f.Drain()

	assert.Equal(t, 1, r.count(EventCancel))
	assert.Equal(t, 1, r.count(EventComplete))
	assert.Equal(t, uint64(2), tm.TotalTicks())
}

func TestTimer_startWhileRunningIgnored(t *testing.T) {
	f := newFixture(t)
	tm := f.New(100)
	r := record(tm)

	tm.Start()
	target := tm.TargetTime()
	f.Step()
	f.Step()
	tm.Start()
	tm.Cancel()
	tm.Start()

	assert.Equal(t, 1, r.count(EventStart))
	assert.Equal(t, target, tm.TargetTime())
	assert.Equal(t, uint64(2), tm.TotalTicks())

	f.Drain()
	assert.Equal(t, 1, r.count(EventComplete))
}

func TestTimer_restartAfterComplete(t *testing.T) {
	f := newFixture(t)
	tm := f.New(20)
	r := record(tm)

	tm.Start()
	f.Drain()
	first := tm.Done()
	require.True(t, isClosed(first))
	assert.Equal(t, uint64(2), tm.TotalTicks())

	f.clock.now += int64(time.Second)
	tm.Start()
	assert.Equal(t, StateRunning, tm.State())
	assert.Equal(t, uint64(0), tm.TotalTicks())
	assert.Equal(t, f.clock.now+int64(20*time.Millisecond), tm.TargetTime())
	assert.False(t, isClosed(tm.Done()))

	f.Drain()
	assert.True(t, isClosed(tm.Done()))
	assert.Equal(t, 2, r.count(EventStart))
	assert.Equal(t, 2, r.count(EventComplete))
}

func TestTimer_restartFromCompleteHandler(t *testing.T) {
	f := newFixture(t)
	tm := f.New(20)
	r := record(tm)

	var restarted bool
	var firstDone <-chan struct{}
	tm.Subscribe(EventComplete, func(tm *Timer) {
		if !restarted {
			restarted = true
			firstDone = tm.Done()
			tm.Start()
		}
	})

	tm.Start()
	f.Drain()

	assert.Equal(t, 2, r.count(EventStart))
	assert.Equal(t, 2, r.count(EventComplete))
	assert.True(t, isClosed(firstDone))
	assert.True(t, isClosed(tm.Done()))
}

func TestTimer_tickHandlerPanicIsIsolated(t *testing.T) {
	f := newFixture(t)
	tm := f.New(50)
	r := record(tm)

	tm.Subscribe(EventTick, func(tm *Timer) {
		if tm.TotalTicks() == 1 {
			panic("boom")
		}
	})
	tm.Start()
	f.Drain()

	require.Len(t, f.faults, 1)
	var panicErr *raf.CallbackPanicError
	require.ErrorAs(t, f.faults[0], &panicErr)
	assert.Equal(t, "boom", panicErr.Value)

	assert.Equal(t, uint64(4), tm.TotalTicks())
	assert.Equal(t, 1, r.count(EventComplete))
}

func TestTimer_subscriptions(t *testing.T) {
	f := newFixture(t)
	tm := f.New(10)

	var calls []string
	a := tm.AddListener(EventStart, func(*Timer) { calls = append(calls, "a") })
	b := tm.AddListener(EventStart, func(*Timer) { calls = append(calls, "b") })
	tm.Subscribe(EventStart, func(*Timer) { calls = append(calls, "c") }).
		Subscribe(EventStart, func(*Timer) { calls = append(calls, "d") })

	assert.NotEqual(t, a, b)
	assert.Equal(t, ListenerID(0), tm.AddListener(EventStart, nil))

	assert.Same(t, tm, tm.Unsubscribe(EventStart, b))
	tm.Unsubscribe(EventStart, b)
	tm.Unsubscribe(EventTick, a)

	tm.Start()
	f.Drain()
	assert.Equal(t, []string{"a", "c", "d"}, calls)

	calls = nil
	assert.Same(t, tm, tm.UnsubscribeAll(EventStart))
	tm.Start()
	f.Drain()
	assert.Empty(t, calls)
}

func TestTimer_unsubscribeAllKinds(t *testing.T) {
	f := newFixture(t)
	tm := f.New(10)
	r := record(tm)

	tm.UnsubscribeAll("")
	tm.Start()
	f.Drain()

	assert.Empty(t, r.events)
	assert.Equal(t, StateComplete, tm.State())
}

func TestTimer_subscribeDuringEmit(t *testing.T) {
	f := newFixture(t)
	tm := f.New(10)

	var late int
	tm.Subscribe(EventStart, func(tm *Timer) {
		tm.Subscribe(EventStart, func(*Timer) { late++ })
	})

	tm.Start()
	assert.Zero(t, late)

	f.Drain()
	tm.Start()
	assert.Equal(t, 1, late)
}

func TestTimer_waitContext(t *testing.T) {
	f := newFixture(t)
	tm := f.New(10)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tm.Wait(ctx), context.DeadlineExceeded)

	tm.Start()
	go f.Drain()
	assert.NoError(t, tm.Wait(context.Background()))
}

func TestTimer_debugLogs(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t)
	tm := f.New(10, WithLogger(logging.New(&buf, logiface.LevelDebug)))

	tm.Start()
	assert.Contains(t, buf.String(), "hrtimer: started")
	f.Drain()
	assert.Contains(t, buf.String(), "hrtimer: complete")
	assert.Contains(t, buf.String(), `"ticks":`)
}

func TestState(t *testing.T) {
	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "Running", StateRunning.String())
	assert.Equal(t, "Cancelling", StateCancelling.String())
	assert.Equal(t, "Complete", StateComplete.String())
	assert.Equal(t, "Unknown", State(42).String())

	var m stateMachine
	assert.False(t, m.TryTransition(StateIdle, StateComplete))
	assert.False(t, m.TryTransition(StateIdle, StateCancelling))
	assert.False(t, m.TryTransition(StateRunning, StateCancelling))
	assert.True(t, m.TryTransition(StateIdle, StateRunning))
	assert.False(t, m.TryTransition(StateRunning, StateRunning))
	assert.True(t, m.TryTransition(StateRunning, StateCancelling))
	assert.False(t, m.TryTransition(StateCancelling, StateRunning))
	assert.True(t, m.TryTransition(StateCancelling, StateComplete))
	assert.True(t, m.TryTransition(StateComplete, StateRunning))
	assert.False(t, m.TryTransition(State(42), StateRunning))
}

func TestTimer_realTime200ms(t *testing.T) {
	sched, err := raf.New()
	require.NoError(t, err)
	tm, err := New(200, WithScheduler(sched))
	require.NoError(t, err)

	var completes int
	tm.Subscribe(EventComplete, func(*Timer) { completes++ })
	tm.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tm.Wait(ctx))

	assert.Equal(t, 1, completes)
	assert.GreaterOrEqual(t, tm.TotalTicks(), uint64(11))
	assert.LessOrEqual(t, tm.TotalTicks(), uint64(13))
}

func TestTimer_realTimeCancelInFirstTick(t *testing.T) {
	sched, err := raf.New()
	require.NoError(t, err)
	tm, err := New(2000, WithScheduler(sched))
	require.NoError(t, err)

	tm.Subscribe(EventTick, func(tm *Timer) { tm.Cancel() })
	tm.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tm.Wait(ctx))

	assert.Equal(t, uint64(1), tm.TotalTicks())
}
