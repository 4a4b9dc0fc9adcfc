// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package perf

import (
	"fmt"
	"slices"
	"sync"
)

// EntryType identifies the kind of a timeline [Entry].
type EntryType string

const (
	// EntryMark is the type of entries created by [Timeline.Mark].
	EntryMark EntryType = "mark"

	// EntryMeasure is the type of entries created by [Timeline.Measure].
	EntryMeasure EntryType = "measure"
)

// Entry is a single record on a [Timeline].
type Entry struct {
	// Detail contains optional additional data for the entry.
	Detail any

	// Name is the mark or measure name.
	Name string

	// EntryType is either [EntryMark] or [EntryMeasure].
	EntryType EntryType

	// StartTime is the timestamp of the entry, in nanoseconds, on the same
	// scale as [Now].
	StartTime int64

	// Duration is the span covered by the entry, in nanoseconds.
	// For marks, this is always 0.
	Duration int64
}

// MarkNotFoundError is returned by [Timeline.Measure] when a named mark has
// not been recorded.
type MarkNotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *MarkNotFoundError) Error() string {
	return fmt.Sprintf("perf: mark '%s' not found", e.Name)
}

// Is reports true for any *MarkNotFoundError target with an empty or equal
// name, allowing errors.Is(err, &MarkNotFoundError{}).
func (e *MarkNotFoundError) Is(target error) bool {
	t, ok := target.(*MarkNotFoundError)
	return ok && (t.Name == "" || t.Name == e.Name)
}

// Timeline records named marks and the measures between them, in the manner
// of the User Timing API, with all timestamps in nanoseconds.
//
// Thread Safety:
// Timeline is safe for concurrent use. Observers are notified synchronously,
// after the internal lock has been released, so they may call back into the
// timeline.
type Timeline struct { //nolint:govet // betteralign:ignore
	entries   []Entry
	marks     map[string][]int64
	observers []*Observer
	now       func() int64
	mu        sync.RWMutex
}

// NewTimeline creates an empty Timeline, using [Now] as its clock.
func NewTimeline() *Timeline {
	return newTimeline(nil)
}

func newTimeline(now func() int64) *Timeline {
	if now == nil {
		now = Now
	}
	return &Timeline{
		marks: make(map[string][]int64),
		now:   now,
	}
}

// Mark records a named timestamp. Using the same name more than once keeps
// every entry, with the most recent used by [Timeline.Measure].
func (t *Timeline) Mark(name string) Entry {
	return t.MarkWithDetail(name, nil)
}

// MarkWithDetail is [Timeline.Mark] with optional detail data attached to the
// entry.
func (t *Timeline) MarkWithDetail(name string, detail any) Entry {
	now := t.now()

	entry := Entry{
		Name:      name,
		EntryType: EntryMark,
		StartTime: now,
		Detail:    detail,
	}

	t.mu.Lock()
	t.marks[name] = append(t.marks[name], now)
	t.entries = append(t.entries, entry)
	observers := t.observers
	t.mu.Unlock()

	notify(observers, entry)
	return entry
}

// Measure records the span between two marks.
//
// An empty startMark uses the timeline origin (0), and an empty endMark uses
// the current time. A [*MarkNotFoundError] is returned if a named mark does
// not exist, in which case nothing is recorded.
func (t *Timeline) Measure(name, startMark, endMark string) (Entry, error) {
	return t.MeasureWithDetail(name, startMark, endMark, nil)
}

// MeasureWithDetail is [Timeline.Measure] with optional detail data attached
// to the entry.
func (t *Timeline) MeasureWithDetail(name, startMark, endMark string, detail any) (Entry, error) {
	now := t.now()

	t.mu.Lock()

	var startTime int64
	if startMark != "" {
		v, ok := t.lastMark(startMark)
		if !ok {
			t.mu.Unlock()
			return Entry{}, &MarkNotFoundError{Name: startMark}
		}
		startTime = v
	}

	endTime := now
	if endMark != "" {
		v, ok := t.lastMark(endMark)
		if !ok {
			t.mu.Unlock()
			return Entry{}, &MarkNotFoundError{Name: endMark}
		}
		endTime = v
	}

	entry := Entry{
		Name:      name,
		EntryType: EntryMeasure,
		StartTime: startTime,
		Duration:  endTime - startTime,
		Detail:    detail,
	}
	t.entries = append(t.entries, entry)
	observers := t.observers

	t.mu.Unlock()

	notify(observers, entry)
	return entry, nil
}

func (t *Timeline) lastMark(name string) (int64, bool) {
	marks := t.marks[name]
	if len(marks) == 0 {
		return 0, false
	}
	return marks[len(marks)-1], true
}

// Entries returns a copy of all entries, in recording order.
func (t *Timeline) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.entries)
}

// EntriesByType returns all entries of the given type, in recording order.
func (t *Timeline) EntriesByType(entryType EntryType) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []Entry
	for _, entry := range t.entries {
		if entry.EntryType == entryType {
			result = append(result, entry)
		}
	}
	return result
}

// EntriesByName returns all entries with the given name, optionally filtered
// to a single entry type.
func (t *Timeline) EntriesByName(name string, entryType ...EntryType) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var typeFilter EntryType
	if len(entryType) > 0 {
		typeFilter = entryType[0]
	}

	var result []Entry
	for _, entry := range t.entries {
		if entry.Name == name && (typeFilter == "" || entry.EntryType == typeFilter) {
			result = append(result, entry)
		}
	}
	return result
}

// ClearMarks removes marks with the given name, or all marks if name is empty.
func (t *Timeline) ClearMarks(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if name == "" {
		t.marks = make(map[string][]int64)
	} else {
		delete(t.marks, name)
	}
	t.removeEntries(EntryMark, name)
}

// ClearMeasures removes measures with the given name, or all measures if
// name is empty.
func (t *Timeline) ClearMeasures(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeEntries(EntryMeasure, name)
}

func (t *Timeline) removeEntries(entryType EntryType, name string) {
	t.entries = slices.DeleteFunc(t.entries, func(entry Entry) bool {
		return entry.EntryType == entryType && (name == "" || entry.Name == name)
	})
}

// ObserverFunc receives newly recorded entries.
type ObserverFunc func(entries []Entry, observer *Observer)

// Observer is a subscription to entries recorded on a [Timeline], created by
// [Timeline.Observe].
type Observer struct {
	callback   ObserverFunc
	timeline   *Timeline
	entryTypes []EntryType
}

// Observe registers callback for entries of the given types, or all types if
// none are given. Entries recorded before the call are not delivered.
func (t *Timeline) Observe(callback ObserverFunc, entryTypes ...EntryType) *Observer {
	if callback == nil {
		return nil
	}

	o := &Observer{
		callback:   callback,
		timeline:   t,
		entryTypes: slices.Clone(entryTypes),
	}

	t.mu.Lock()
	// copy on write, notify iterates a snapshot without holding the lock
	t.observers = append(slices.Clip(t.observers), o)
	t.mu.Unlock()

	return o
}

// Disconnect stops delivery to the observer. It is safe to call more than
// once, including from within the observer's own callback.
func (o *Observer) Disconnect() {
	if o == nil {
		return
	}
	t := o.timeline
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = slices.DeleteFunc(slices.Clone(t.observers), func(v *Observer) bool {
		return v == o
	})
}

func (o *Observer) accepts(entryType EntryType) bool {
	return len(o.entryTypes) == 0 || slices.Contains(o.entryTypes, entryType)
}

func notify(observers []*Observer, entry Entry) {
	for _, o := range observers {
		if o.accepts(entry.EntryType) {
			o.callback([]Entry{entry}, o)
		}
	}
}
