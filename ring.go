// ring.go: MPSC event ring between the directory notifier and the reload loop
//
// Derived from the BoreasLite ring buffer: producers claim a sequence with an
// atomic add, publish the slot through a per-slot availability marker, and a
// single consumer drains contiguous published slots. Instead of spinning, the
// consumer parks on a one-slot wake channel.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"sync/atomic"
	"time"
)

// ringSlot is one queued filesystem event.
type ringSlot struct {
	path string
	op   Op
	at   int64 // Unix nanoseconds from the cached clock
}

// eventRing is a bounded multi-producer single-consumer queue of events.
type eventRing struct {
	buffer   []ringSlot
	capacity int64
	mask     int64 // capacity - 1 for fast modulo

	// MPSC atomic cursors with cache-line padding
	writerCursor atomic.Int64
	readerCursor atomic.Int64
	_            [48]byte

	// Per-slot availability markers
	availableBuffer []atomic.Int64

	wake     chan struct{}
	overflow atomic.Bool
	closed   atomic.Bool

	dropped atomic.Int64
}

// newEventRing creates a ring; capacity must be a power of 2.
func newEventRing(capacity int64) *eventRing {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		capacity = DefaultEventRingCapacity
	}

	r := &eventRing{
		buffer:          make([]ringSlot, capacity),
		capacity:        capacity,
		mask:            capacity - 1,
		availableBuffer: make([]atomic.Int64, capacity),
		wake:            make(chan struct{}, 1),
	}

	for i := range r.availableBuffer {
		r.availableBuffer[i].Store(-1)
	}

	return r
}

// write queues an event and wakes the consumer.
// It returns false when the ring is full or closed; a full ring raises the
// overflow flag so the consumer can resynchronize.
func (r *eventRing) write(path string, op Op, at time.Time) bool {
	if r.closed.Load() {
		r.dropped.Add(1)
		return false
	}

	for {
		sequence := r.writerCursor.Load()
		if sequence >= r.readerCursor.Load()+r.capacity {
			r.dropped.Add(1)
			r.overflow.Store(true)
			r.signal()
			return false
		}
		if !r.writerCursor.CompareAndSwap(sequence, sequence+1) {
			continue
		}

		idx := sequence & r.mask
		r.buffer[idx] = ringSlot{path: path, op: op, at: at.UnixNano()}
		r.availableBuffer[idx].Store(sequence)
		r.signal()
		return true
	}
}

func (r *eventRing) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// drain hands every contiguous published event to fn and returns how many
// were processed. Only the consumer goroutine may call drain.
func (r *eventRing) drain(fn func(Event)) int {
	current := r.readerCursor.Load()
	writerPos := r.writerCursor.Load()
	n := 0

	for seq := current; seq < writerPos; seq++ {
		idx := seq & r.mask
		if r.availableBuffer[idx].Load() != seq {
			// Claimed but not yet published; the producer will signal again
			break
		}

		slot := r.buffer[idx]
		r.buffer[idx] = ringSlot{}
		r.availableBuffer[idx].Store(-1)
		r.readerCursor.Store(seq + 1)
		n++

		fn(Event{Path: slot.path, Op: slot.op, At: time.Unix(0, slot.at)})
	}

	return n
}

// takeOverflow reports and clears the overflow flag.
func (r *eventRing) takeOverflow() bool {
	return r.overflow.Swap(false)
}

// close rejects further writes.
func (r *eventRing) close() {
	r.closed.Store(true)
}

// buffered returns the number of events written but not yet drained.
func (r *eventRing) buffered() int64 {
	return r.writerCursor.Load() - r.readerCursor.Load()
}
