// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package hrtimer provides a frame polled, high resolution countdown [Timer].
//
// A timer computes its target time from perf.Now when started, then polls
// once per frame, via a raf scheduler, until a flush timestamp reaches the
// target. Progress is reported through events:
//
//	EventStart    "hrt::start"
//	EventTick     "hrt::tick"      (once per poll before the target)
//	EventCancel   "hrt::cancel"    (cancellation requested)
//	EventComplete "hrt::complete"  (exactly once per run)
//
// # Usage
//
//	t, err := hrtimer.New(200)
//	if err != nil {
//	    return err
//	}
//	t.Subscribe(hrtimer.EventTick, func(t *hrtimer.Timer) {
//	    fmt.Println("tick", t.TotalTicks())
//	}).Start()
//	if err := t.Wait(ctx); err != nil {
//	    return err
//	}
package hrtimer
