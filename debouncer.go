// debouncer.go: Per-path quiet windows that coalesce event bursts into reloads
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"slices"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
)

// debouncer tracks one deadline per relevant path. It owns no goroutine or
// timer: the loop asks for the next deadline and calls expire when it passes.
// Only the loop goroutine touches it, except for the atomic counters.
type debouncer struct {
	window    time.Duration
	deadlines map[string]time.Time
	ready     *queue.Queue // Expired paths in deadline order

	observed  atomic.Int64
	discarded atomic.Int64
	waiting   atomic.Int64 // len(deadlines), readable from any goroutine
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:    window,
		deadlines: make(map[string]time.Time),
		ready:     queue.New(),
	}
}

// observe (re)starts the deadline for ev.Path if relevant accepts it.
// Irrelevant events are counted and otherwise ignored: they neither reset
// nor consume any pending deadline.
func (d *debouncer) observe(ev Event, relevant func(string) bool) bool {
	d.observed.Add(1)
	if !relevant(ev.Path) {
		d.discarded.Add(1)
		return false
	}
	d.deadlines[ev.Path] = ev.At.Add(d.window)
	d.waiting.Store(int64(len(d.deadlines)))
	return true
}

// touch schedules path as if an event had just arrived.
func (d *debouncer) touch(path string, now time.Time) {
	d.deadlines[path] = now.Add(d.window)
	d.waiting.Store(int64(len(d.deadlines)))
}

// next returns the earliest pending deadline.
func (d *debouncer) next() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, deadline := range d.deadlines {
		if !found || deadline.Before(earliest) {
			earliest = deadline
			found = true
		}
	}
	return earliest, found
}

// expire moves every path whose deadline is not after now into the ready
// queue, earliest first. Paths that are no longer relevant are dropped.
func (d *debouncer) expire(now time.Time, relevant func(string) bool) int {
	type due struct {
		path     string
		deadline time.Time
	}

	var expired []due
	for path, deadline := range d.deadlines {
		if deadline.After(now) {
			continue
		}
		delete(d.deadlines, path)
		if relevant(path) {
			expired = append(expired, due{path: path, deadline: deadline})
		}
	}

	slices.SortFunc(expired, func(a, b due) int {
		if c := a.deadline.Compare(b.deadline); c != 0 {
			return c
		}
		if a.path < b.path {
			return -1
		}
		if a.path > b.path {
			return 1
		}
		return 0
	})

	for _, e := range expired {
		d.ready.Add(e.path)
	}
	d.waiting.Store(int64(len(d.deadlines)))
	return len(expired)
}

// takeReady drains the ready queue.
func (d *debouncer) takeReady() []string {
	if d.ready.Length() == 0 {
		return nil
	}
	paths := make([]string, 0, d.ready.Length())
	for d.ready.Length() > 0 {
		paths = append(paths, d.ready.Remove().(string))
	}
	return paths
}

// pending returns the number of paths waiting for their deadline.
func (d *debouncer) pending() int {
	return int(d.waiting.Load())
}

// reset drops every pending deadline and ready path without reloading.
func (d *debouncer) reset() {
	clear(d.deadlines)
	d.waiting.Store(0)
	for d.ready.Length() > 0 {
		d.ready.Remove()
	}
}
