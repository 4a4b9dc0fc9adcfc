// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hrtimer

import (
	"slices"
	"sync/atomic"
)

// State is the lifecycle state of a [Timer].
//
// State Machine:
//
//	StateIdle → StateRunning          [Start()]
//	StateRunning → StateCancelling    [Cancel()]
//	StateRunning → StateComplete      [poll, target reached]
//	StateCancelling → StateComplete   [poll]
//	StateComplete → StateRunning      [Start()]
//
// Any other transition is rejected, and the triggering call ignored.
type State uint32

const (
	// StateIdle indicates the timer has never been started.
	StateIdle State = iota
	// StateRunning indicates the timer is polling toward its target time.
	StateRunning
	// StateCancelling indicates Cancel was called during a run, and the
	// timer will complete at its next poll.
	StateCancelling
	// StateComplete indicates the last run finished, either by reaching the
	// target time or by cancellation.
	StateComplete
)

var transitions = [...][]State{
	StateIdle:       {StateRunning},
	StateRunning:    {StateCancelling, StateComplete},
	StateCancelling: {StateComplete},
	StateComplete:   {StateRunning},
}

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateCancelling:
		return "Cancelling"
	case StateComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// active reports whether a run is in progress.
func (s State) active() bool {
	return s == StateRunning || s == StateCancelling
}

func (s State) canTransition(to State) bool {
	return int(s) < len(transitions) && slices.Contains(transitions[s], to)
}

// stateMachine holds a State, permitting only valid transitions.
type stateMachine struct {
	v atomic.Uint32
}

func (x *stateMachine) Load() State {
	return State(x.v.Load())
}

// TryTransition moves from one state to another, returning false if the
// transition is invalid, or the current state is not from.
func (x *stateMachine) TryTransition(from, to State) bool {
	if !from.canTransition(to) {
		return false
	}
	return x.v.CompareAndSwap(uint32(from), uint32(to))
}
