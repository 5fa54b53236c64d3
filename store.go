// store.go: Lock-free snapshot register
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import "sync/atomic"

// valueStore holds exactly one immutable snapshot. Readers never lock;
// a single writer (the background goroutine) replaces the pointer.
type valueStore[T any] struct {
	current    atomic.Pointer[T]
	generation atomic.Uint64
}

// Load returns the current snapshot, or the zero value before the first Store.
func (s *valueStore[T]) Load() T {
	if p := s.current.Load(); p != nil {
		return *p
	}
	var zero T
	return zero
}

// Store publishes v and returns its generation.
func (s *valueStore[T]) Store(v T) uint64 {
	// Copy so later mutation of the caller's variable cannot reach readers
	snapshot := v
	s.current.Store(&snapshot)
	return s.generation.Add(1)
}

// Generation returns the number of stores so far.
func (s *valueStore[T]) Generation() uint64 {
	return s.generation.Load()
}
