// scheduler.go: The single background goroutine that owns a watch
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
)

// engine is everything behind a Watch. The background goroutine references
// the engine, never the Watch, so an abandoned Watch can be collected and
// its cleanup can stop the loop.
type engine[T any] struct {
	cfg         Config
	loader      Loader[T]
	onError     ErrorHandler
	afterUpdate UpdateHandler[T]
	hooks       []UpdateHandler[T]
	def         *T
	policy      InitialPolicy
	primary     string
	initial     []string

	store    valueStore[T]
	deps     *dependencySet
	ring     *eventRing
	notifier *dirNotifier
	debounce *debouncer
	audit    *AuditLogger

	state    atomic.Int32
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	closeErr error

	reloads  atomic.Int64
	failures atomic.Int64
	panics   atomic.Int64
}

func newEngine[T any](opts Options[T]) (*engine[T], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	cfg := opts.Config.WithDefaults()

	initial, err := normalizePaths(opts.Files)
	if err != nil {
		return nil, err
	}
	if len(initial) > cfg.MaxWatchedPaths {
		return nil, errors.New(ErrCodeTooManyPaths, "maximum watched paths exceeded").
			WithContext("max_paths", cfg.MaxWatchedPaths).
			WithContext("requested", len(initial))
	}

	audit, err := NewAuditLogger(cfg.Audit)
	if err != nil {
		// A broken audit backend leaves auditing off
		audit, _ = NewAuditLogger(AuditConfig{Enabled: false})
	}

	onError := opts.OnError
	if onError == nil {
		onError = DefaultErrorHandler
	}

	e := &engine[T]{
		cfg:         *cfg,
		loader:      opts.Loader,
		onError:     onError,
		afterUpdate: opts.AfterUpdate,
		hooks:       append([]UpdateHandler[T](nil), opts.Hooks...),
		def:         opts.Default,
		policy:      opts.InitialPolicy,
		primary:     initial[0],
		initial:     initial,
		deps:        newDependencySet(cfg.MaxWatchedPaths),
		ring:        newEventRing(cfg.EventRingCapacity),
		debounce:    newDebouncer(cfg.window()),
		audit:       audit,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	e.state.Store(int32(StateStarting))
	return e, nil
}

// start performs the Starting phase: notifier setup, then the initial load.
// Any failure releases what was acquired and leaves the engine Stopped.
func (e *engine[T]) start() (err error) {
	defer func() {
		if err != nil {
			e.release()
			e.state.Store(int32(StateStopped))
			close(e.doneCh)
		}
	}()

	e.notifier, err = newDirNotifier(e.ring)
	if err != nil {
		return err
	}

	res := e.deps.reconcile(e.initial, e.notifier)
	if len(res.errs) > 0 {
		return res.errs[0]
	}
	e.audit.LogFileWatch("watch_start", e.primary)
	e.audit.LogDependencyChange(res.added, nil)

	if err = e.initialLoad(); err != nil {
		return err
	}

	e.state.Store(int32(StateRunning))
	go e.run()
	return nil
}

// run is the Running phase. It waits for ring wakeups, notifier errors or
// the next debounce deadline, and reloads serially.
func (e *engine[T]) run() {
	defer close(e.doneCh)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	relevant := e.deps.contains

	for {
		select {
		case <-e.stopCh:
			e.shutdown()
			return

		case <-e.ring.wake:
			e.ring.drain(func(ev Event) {
				e.debounce.observe(ev, relevant)
			})
			if e.ring.takeOverflow() {
				// Events were lost: assume every dependency changed
				now := time.Now()
				for _, p := range e.deps.list() {
					e.debounce.touch(p, now)
				}
				e.audit.Log(AuditWarn, "event_overflow", auditComponent, e.primary, nil, nil, nil)
			}

		case err := <-e.notifier.failures():
			ctx := newContext(e.primary, nil, e.deps.list())
			e.dispatchError(ctx, errors.Wrap(err, ErrCodeNotifierError, "filesystem notifier error: "+err.Error()))
			ctx.expire()

		case <-timer.C:
		}

		// A stop request wins over pending work
		select {
		case <-e.stopCh:
			e.shutdown()
			return
		default:
		}

		e.debounce.expire(time.Now(), relevant)
		if modified := e.debounce.takeReady(); len(modified) > 0 {
			e.reload(modified)
		}

		if next, ok := e.debounce.next(); ok {
			timer.Reset(max(time.Until(next), 0))
		}
	}
}

// stop requests shutdown; safe from any goroutine, including callbacks.
func (e *engine[T]) stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
}

// shutdown is the Stopping phase: pending deadlines are dropped without
// loading, then OS resources are released.
func (e *engine[T]) shutdown() {
	e.state.Store(int32(StateStopping))
	e.debounce.reset()
	e.audit.LogFileWatch("watch_stop", e.primary)
	e.release()
	e.state.Store(int32(StateStopped))
}

// release frees the notifier, the dependency subscriptions and the audit trail.
func (e *engine[T]) release() {
	if e.notifier != nil {
		e.deps.release(e.notifier)
		if err := e.notifier.close(); err != nil {
			e.closeErr = errors.Wrap(err, ErrCodeWatchFailed, "failed to close filesystem watcher")
		}
	}
	if err := e.audit.Close(); err != nil && e.closeErr == nil {
		e.closeErr = errors.Wrap(err, ErrCodeInvalidAuditConfig, "failed to close audit logger")
	}
}

func (e *engine[T]) stats() Stats {
	return Stats{
		State:           State(e.state.Load()),
		Generation:      e.store.Generation(),
		Reloads:         e.reloads.Load(),
		Failures:        e.failures.Load(),
		EventsSeen:      e.debounce.observed.Load(),
		EventsDiscarded: e.debounce.discarded.Load(),
		RingDropped:     e.ring.dropped.Load(),
		RingBuffered:    e.ring.buffered(),
		PendingPaths:    e.debounce.pending(),
		Panics:          e.panics.Load(),
		WatchedPaths:    len(e.deps.published()),
		WatchedDirs:     e.deps.dirsWatched(),
	}
}
