// async.go: Asynchronous build with a single suspension point
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"context"

	"github.com/agilira/go-errors"
)

// Pending is the result of BuildAsync. It resolves once, when setup and the
// initial load have finished. Reloads afterwards still run on the watch's
// own background goroutine.
type Pending[T any] struct {
	done  chan struct{}
	watch *Watch[T]
	err   error
}

// BuildAsync runs Build on a separate goroutine. If ctx is cancelled before
// the build completes, the freshly built watch is closed and the Pending
// resolves with the context error.
func BuildAsync[T any](ctx context.Context, opts Options[T]) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{})}

	go func() {
		defer close(p.done)

		if err := ctx.Err(); err != nil {
			p.err = errors.Wrap(err, ErrCodeWatchClosed, "build cancelled before start")
			return
		}

		w, err := Build(opts)
		if err != nil {
			p.err = err
			return
		}

		if err := ctx.Err(); err != nil {
			_ = w.Close()
			p.err = errors.Wrap(err, ErrCodeWatchClosed, "build cancelled during initial load")
			return
		}
		p.watch = w
	}()

	return p
}

// Done returns a channel closed when the build has finished.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Result returns the outcome. It must only be called after Done is closed.
func (p *Pending[T]) Result() (*Watch[T], error) {
	return p.watch, p.err
}

// Wait blocks until the build finishes or ctx is done. Giving up on Wait
// does not cancel the build; the watch is still closed by its cleanup
// once unreachable.
func (p *Pending[T]) Wait(ctx context.Context) (*Watch[T], error) {
	select {
	case <-p.done:
		return p.watch, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
