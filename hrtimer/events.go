// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package hrtimer

import (
	"slices"
	"sync"
)

// EventKind names a timer lifecycle event. The values are stable.
type EventKind string

const (
	// EventStart is emitted when a run begins.
	EventStart EventKind = "hrt::start"
	// EventTick is emitted for each poll that does not complete the run.
	EventTick EventKind = "hrt::tick"
	// EventComplete is emitted exactly once per run, when it ends.
	EventComplete EventKind = "hrt::complete"
	// EventCancel is emitted when cancellation is requested.
	EventCancel EventKind = "hrt::cancel"
)

// Handler receives timer events. It is called synchronously, on the
// goroutine that caused the transition, with no timer locks held.
type Handler func(t *Timer)

// ListenerID identifies a handler registered via [Timer.AddListener].
type ListenerID uint64

type listenerEntry struct {
	handler Handler
	id      ListenerID
}

// listeners maps event kinds to ordered handlers. Slices are copy on write,
// so emit may iterate a snapshot without holding the lock.
type listeners struct {
	byKind map[EventKind][]listenerEntry
	nextID ListenerID
	mu     sync.RWMutex
}

func (x *listeners) add(kind EventKind, handler Handler) ListenerID {
	if handler == nil {
		return 0
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.byKind == nil {
		x.byKind = make(map[EventKind][]listenerEntry)
	}
	x.nextID++
	x.byKind[kind] = append(slices.Clip(x.byKind[kind]), listenerEntry{
		handler: handler,
		id:      x.nextID,
	})
	return x.nextID
}

func (x *listeners) remove(kind EventKind, id ListenerID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	entries := x.byKind[kind]
	i := slices.IndexFunc(entries, func(e listenerEntry) bool { return e.id == id })
	if i < 0 {
		return false
	}
	x.byKind[kind] = slices.Delete(slices.Clone(entries), i, i+1)
	return true
}

// removeAll removes every handler for kind, or for all kinds if kind is
// empty.
func (x *listeners) removeAll(kind EventKind) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if kind == "" {
		x.byKind = nil
	} else {
		delete(x.byKind, kind)
	}
}

func (x *listeners) emit(kind EventKind, t *Timer) {
	x.mu.RLock()
	entries := x.byKind[kind]
	x.mu.RUnlock()

	for _, e := range entries {
		e.handler(t)
	}
}
