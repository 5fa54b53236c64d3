// dispatcher.go: Panic-isolated invocation of loaders and user callbacks
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/agilira/go-errors"
)

// invokeLoader runs the loader on the calling goroutine. A panic becomes a
// loader error; any other failure is tagged with the loader code unless the
// loader already used one of ours.
func (e *engine[T]) invokeLoader(ctx *Context) (value T, err error) {
	trigger, _ := ctx.Path()

	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = errors.New(ErrCodeLoaderPanic, fmt.Sprintf("loader panicked: %v", r)).
				WithContext("path", trigger)
			e.reportPanic("loader", trigger, r)
		}
	}()

	value, err = e.loader(ctx)
	if err != nil && !IsLoaderError(err) {
		err = errors.Wrap(err, ErrCodeLoaderFailed, fmt.Sprintf("loader failed: %v", err)).
			WithContext("path", trigger)
	}
	return value, err
}

// dispatchUpdate runs AfterUpdate then every hook. The value is already
// published when this runs.
func (e *engine[T]) dispatchUpdate(ctx *Context, value T) {
	if e.afterUpdate != nil {
		e.safeCall("after_update", ctx, func() { e.afterUpdate(ctx, value) })
	}
	for _, hook := range e.hooks {
		if hook == nil {
			continue
		}
		e.safeCall("hook", ctx, func() { hook(ctx, value) })
	}
}

// dispatchError routes err to OnError.
func (e *engine[T]) dispatchError(ctx *Context, err error) {
	e.safeCall("on_error", ctx, func() { e.onError(ctx, err) })
}

// safeCall isolates a callback panic so the loop keeps running.
func (e *engine[T]) safeCall(name string, ctx *Context, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			trigger, _ := ctx.Path()
			e.reportPanic(name, trigger, r)
		}
	}()
	fn()
}

func (e *engine[T]) reportPanic(name, path string, r interface{}) {
	e.panics.Add(1)
	e.audit.LogSecurityEvent("callback_panic", fmt.Sprintf("%s panicked: %v", name, r), map[string]interface{}{
		"callback": name,
		"path":     path,
	})
	fmt.Fprintf(os.Stderr, "kairos: %s panicked: %v\n%s", name, r, debug.Stack())
}
