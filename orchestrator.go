// orchestrator.go: One reload cycle, from loader call to dependency reconcile
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"slices"

	"github.com/agilira/go-errors"
)

// reload drives one cycle for the coalesced paths in modified. On success
// the value is published before any callback runs; on failure the previous
// value stays visible. Buffered path mutations are applied either way.
func (e *engine[T]) reload(modified []string) {
	ctx := newContext(e.primary, modified, e.deps.list())
	defer ctx.expire()

	value, err := e.invokeLoader(ctx)
	if err != nil {
		e.failures.Add(1)
		e.audit.LogReloadError(e.primary, err)
		e.dispatchError(ctx, err)
	} else {
		generation := e.store.Store(value)
		e.reloads.Add(1)
		e.audit.LogReload(e.primary, generation, modified)
		e.dispatchUpdate(ctx, value)
	}

	for _, err := range e.applyChanges(ctx) {
		e.dispatchError(ctx, err)
	}
}

// initialLoad performs the mandatory synchronous load of Build. Depending
// on the policy a failure is fatal or replaced by the default value.
// Dependency changes requested here must all succeed.
func (e *engine[T]) initialLoad() error {
	ctx := newContext(e.primary, slices.Clone(e.initial), e.deps.list())
	defer ctx.expire()

	value, err := e.invokeLoader(ctx)
	if err != nil {
		if e.policy == InitialStrict || (e.policy == InitialRequireDefault && e.def == nil) {
			return errors.Wrap(err, ErrCodeInitialLoadFailed, "initial load failed: "+err.Error()).
				WithContext("path", e.primary).
				WithContext("policy", e.policy.String())
		}

		e.audit.LogReloadError(e.primary, err)
		e.dispatchError(ctx, err)

		var fallback T
		if e.def != nil {
			fallback = *e.def
		}
		value = fallback
	}

	generation := e.store.Store(value)
	e.audit.LogReload(e.primary, generation, e.initial)
	e.dispatchUpdate(ctx, value)

	if errs := e.applyChanges(ctx); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// applyChanges reconciles the dependency set with the mutations buffered
// in ctx and returns the failures, each tagged with the offending path.
func (e *engine[T]) applyChanges(ctx *Context) []error {
	target, changed := ctx.changes()
	if !changed {
		return nil
	}

	res := e.deps.reconcile(target, e.notifier)
	e.audit.LogDependencyChange(res.added, res.removed)
	for _, err := range res.errs {
		e.audit.Log(AuditWarn, "watch_failed", auditComponent, "", nil, nil, map[string]interface{}{
			"error": err.Error(),
			"code":  errorCode(err),
		})
	}
	return res.errs
}
