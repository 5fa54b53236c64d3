// kairos: Hot-reloadable configuration with fsnotify-driven debounced reloads
//
// Philosophy:
// - One background goroutine per watch, strictly serialized reloads
// - Lock-free reads through an atomic snapshot pointer
// - Parent-directory watching so creation and deletion are observable
// - Loader decides what a missing file means, the engine never guesses
// - Callback failures are isolated and never stop future reloads
//
// Example Usage:
//
//	w, err := kairos.Build(kairos.Options[AppConfig]{
//	    Files:  []string{"config.json"},
//	    Loader: kairos.LoadJSON[AppConfig](),
//	    AfterUpdate: func(ctx *kairos.Context, cfg AppConfig) {
//	        atomicLevel.SetLevel(cfg.Level)
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	cfg := w.Value()
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	goerrors "errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/agilira/go-errors"
)

// Error codes for Kairos operations
const (
	ErrCodeInvalidConfig      = "KAIROS_INVALID_CONFIG"
	ErrCodeInvalidPath        = "KAIROS_INVALID_PATH"
	ErrCodeDirectoryMissing   = "KAIROS_DIRECTORY_MISSING"
	ErrCodeWatchFailed        = "KAIROS_WATCH_FAILED"
	ErrCodeNotifierError      = "KAIROS_NOTIFIER_ERROR"
	ErrCodeLoaderFailed       = "KAIROS_LOADER_FAILED"
	ErrCodeLoaderPanic        = "KAIROS_LOADER_PANIC"
	ErrCodeInitialLoadFailed  = "KAIROS_INITIAL_LOAD_FAILED"
	ErrCodeWatchClosed        = "KAIROS_WATCH_CLOSED"
	ErrCodeContextExpired     = "KAIROS_CONTEXT_EXPIRED"
	ErrCodeTooManyPaths       = "KAIROS_TOO_MANY_PATHS"
	ErrCodeUnsupportedFormat  = "KAIROS_UNSUPPORTED_FORMAT"
	ErrCodeParseFailed        = "KAIROS_PARSE_FAILED"
	ErrCodeInvalidDebounce    = "KAIROS_INVALID_DEBOUNCE"
	ErrCodeInvalidMaxPaths    = "KAIROS_INVALID_MAX_WATCHED_PATHS"
	ErrCodeInvalidRing        = "KAIROS_INVALID_EVENT_RING_CAPACITY"
	ErrCodeInvalidAuditConfig = "KAIROS_INVALID_AUDIT_CONFIG"
	ErrCodeInvalidBufferSize  = "KAIROS_INVALID_BUFFER_SIZE"
	ErrCodeInvalidFlush       = "KAIROS_INVALID_FLUSH_INTERVAL"
	ErrCodeInvalidOutputFile  = "KAIROS_INVALID_OUTPUT_FILE"
	ErrCodeDebounceTooLarge   = "KAIROS_DEBOUNCE_TOO_LARGE"
	ErrCodeMaxPathsTooLarge   = "KAIROS_MAX_WATCHED_PATHS_TOO_LARGE"
)

// Op identifies the kind of filesystem change carried by an Event.
type Op uint8

// Filesystem change kinds
const (
	OpCreated Op = 1 << iota
	OpRemoved
	OpModified
)

func (o Op) String() string {
	switch o {
	case OpCreated:
		return "CREATED"
	case OpRemoved:
		return "REMOVED"
	case OpModified:
		return "MODIFIED"
	default:
		return "UNKNOWN"
	}
}

// Event is a single filesystem change observed under a watched directory.
type Event struct {
	Path string    // Absolute path of the changed entry
	Op   Op        // Kind of change
	At   time.Time // Arrival time (cached clock)
}

// Loader turns the current state of the watched files into a value.
// It runs on the background goroutine and may mutate the dependency set
// through ctx.
type Loader[T any] func(ctx *Context) (T, error)

// ErrorHandler is called when a reload fails or the notifier reports an error.
type ErrorHandler func(ctx *Context, err error)

// UpdateHandler is called after a new value has been published.
type UpdateHandler[T any] func(ctx *Context, value T)

// DefaultErrorHandler prints the error to stderr.
func DefaultErrorHandler(_ *Context, err error) {
	fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
}

// State is the lifecycle state of a Watch.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time view of a watch's counters.
type Stats struct {
	State           State
	Generation      uint64 // Number of values published, initial included
	Reloads         int64  // Successful reloads after the initial load
	Failures        int64  // Failed reloads after the initial load
	EventsSeen      int64  // Events drained from the notifier ring
	EventsDiscarded int64  // Events for paths outside the dependency set
	RingDropped     int64  // Events lost to ring overflow
	RingBuffered    int64  // Events written to the ring and not yet drained
	PendingPaths    int    // Paths waiting for their quiet window
	Panics          int64  // Loader and callback panics recovered
	WatchedPaths    int
	WatchedDirs     int
}

// Watch holds the latest successfully loaded configuration value and keeps it
// fresh from a background goroutine. A *Watch is safe for concurrent use.
//
// When the Watch becomes unreachable its background goroutine is stopped.
// Callbacks that capture the Watch keep it reachable, so such programs
// must call Close.
type Watch[T any] struct {
	e *engine[T]
}

// Build validates opts, sets up the directory notifier, performs the initial
// load and starts the background goroutine.
//
// Errors are setup errors (missing parent directory, watch registration
// failure, invalid options) or, depending on Options.InitialPolicy, an
// initial load failure.
func Build[T any](opts Options[T]) (*Watch[T], error) {
	e, err := newEngine(opts)
	if err != nil {
		return nil, err
	}

	if err := e.start(); err != nil {
		return nil, err
	}

	w := &Watch[T]{e: e}
	runtime.AddCleanup(w, func(e *engine[T]) { e.stop() }, e)
	return w, nil
}

// Value returns the current snapshot. It never blocks and never fails.
func (w *Watch[T]) Value() T {
	return w.e.store.Load()
}

// Generation returns the number of values published so far.
func (w *Watch[T]) Generation() uint64 {
	return w.e.store.Generation()
}

// Paths returns the current dependency set, sorted.
func (w *Watch[T]) Paths() []string {
	return w.e.deps.published()
}

// State returns the lifecycle state of the background goroutine.
func (w *Watch[T]) State() State {
	return State(w.e.state.Load())
}

// Done returns a channel closed once the background goroutine has exited.
func (w *Watch[T]) Done() <-chan struct{} {
	return w.e.doneCh
}

// Stats returns the current counters.
func (w *Watch[T]) Stats() Stats {
	return w.e.stats()
}

// Stop signals the background goroutine to exit without waiting for it.
// It is the form to use from inside a loader or callback.
func (w *Watch[T]) Stop() {
	w.e.stop()
}

// Close stops the background goroutine and waits for it to release its
// resources. Close is idempotent. Calling it from a loader or callback
// deadlocks; use Stop there.
func (w *Watch[T]) Close() error {
	w.e.stop()
	<-w.e.doneCh
	return w.e.closeErr
}

// errorCode extracts the go-errors code from err or any error it wraps.
func errorCode(err error) string {
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return string(coder.ErrorCode())
	}
	return ""
}

// IsSetupError reports whether err prevented a watch from being built.
func IsSetupError(err error) bool {
	switch errorCode(err) {
	case ErrCodeDirectoryMissing, ErrCodeWatchFailed, ErrCodeInvalidConfig, ErrCodeInvalidPath, ErrCodeTooManyPaths:
		return true
	}
	return false
}

// IsLoaderError reports whether err came from a failed or panicking loader.
func IsLoaderError(err error) bool {
	switch errorCode(err) {
	case ErrCodeLoaderFailed, ErrCodeLoaderPanic, ErrCodeParseFailed, ErrCodeInitialLoadFailed:
		return true
	}
	return false
}
