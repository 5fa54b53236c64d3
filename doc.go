// Package kairos keeps a typed configuration value in sync with the files it
// was loaded from. A Watch owns one background goroutine that listens for
// filesystem changes, coalesces bursts of events, re-runs a user loader and
// publishes the result atomically. Readers call Value from any goroutine
// without locks.
//
// # Philosophy: The Loader Decides
//
// Kairos does not parse anything on its own behalf. The loader receives a
// *Context describing which files changed and which files are watched, and
// returns a value or an error. A failed load never replaces the published
// value; the previous snapshot stays visible until a later load succeeds.
//
// # Architecture Overview
//
// Each Watch runs one pipeline:
//  1. **Directory Notifier**: fsnotify watches the parent directory of every
//     dependency, so creation and deletion are observable
//  2. **Event Ring**: a lock-free MPSC ring between the fsnotify goroutine
//     and the scheduler; on overflow every dependency is reloaded
//  3. **Debouncer**: per-path quiet windows; events for files outside the
//     dependency set are counted and discarded
//  4. **Load Orchestrator**: invokes the loader with a fresh Context and
//     applies dependency changes requested through it
//  5. **Atomic Value Store**: copy-on-write snapshots behind atomic.Pointer
//  6. **Callback Dispatcher**: AfterUpdate, hooks and OnError, each isolated
//     from panics
//
// # Quick Start
//
//	type AppConfig struct {
//		Value int `json:"value"`
//	}
//
//	w, err := kairos.Build(kairos.Options[AppConfig]{
//		Files:  []string{"a.json"},
//		Loader: kairos.LoadJSONOr(AppConfig{Value: 0}),
//		OnError: func(ctx *kairos.Context, err error) {
//			log.Printf("reload of %s failed: %v", ctx.PrimaryPath(), err)
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer w.Close()
//
//	fmt.Println(w.Value().Value)
//
// # Dynamic Dependencies
//
// A loader may grow or shrink the set of watched files while it runs. The
// changes are buffered on the Context and applied after the load, whether it
// succeeded or not:
//
//	loader := func(ctx *kairos.Context) (Settings, error) {
//		var s Settings
//		if err := readJSON(ctx.PrimaryPath(), &s); err != nil {
//			return Settings{}, err
//		}
//		for _, inc := range s.Includes {
//			_ = ctx.AddPath(inc)
//		}
//		return s, nil
//	}
//
// A Context is only valid during the call it was passed to. Mutations made
// after the loader returns fail with ErrCodeContextExpired.
//
// # Initial Load
//
// Build performs the first load synchronously. InitialPolicy decides what a
// failure means:
//   - InitialFallback (default): OnError is called and Default, or the zero
//     value, is published
//   - InitialRequireDefault: like fallback, but Build fails without Default
//   - InitialStrict: Build fails
//
// BuildAsync runs the same steps on another goroutine and resolves a Pending
// once, after the initial load. Subsequent reloads still happen on the
// watch's own goroutine.
//
// # Lifecycle
//
// A Watch moves through Starting, Running, Stopping and Stopped. Close stops
// the loop and waits for it. Stop only signals, which makes it the one to use
// from inside a callback. A Watch that becomes unreachable is stopped by a
// runtime cleanup.
//
// # Formats
//
// LoadFile and its shorthands decode JSON, YAML, TOML, HCL (flat subset),
// INI and Java properties. RegisterParser plugs in a custom ConfigParser that
// takes precedence for the formats it supports.
//
// # Configuration
//
// Config tunes the engine. It can be filled from KAIROS_* environment
// variables with LoadConfigFromEnv, or from command-line flags with
// ConfigFromFlags:
//
//	KAIROS_DEBOUNCE=250ms
//	KAIROS_DISABLE_DEBOUNCE=false
//	KAIROS_MAX_WATCHED_PATHS=100
//	KAIROS_EVENT_RING_CAPACITY=256
//	KAIROS_AUDIT_ENABLED=true
//	KAIROS_AUDIT_OUTPUT_FILE=/var/log/kairos/audit.jsonl
//
// # Audit Trail
//
// When Config.Audit is enabled, reloads, failures, dependency changes and
// callback panics are written to a tamper-evident trail. A path ending in
// .jsonl selects a JSON-lines file; anything else, or no path at all, selects
// SQLite. QueryAuditEvents and ReadAuditStats read the trail back.
//
// # Error Handling
//
// Errors carry go-errors codes. IsSetupError and IsLoaderError classify
// them, and GetValidationErrorCode extracts the code from any Kairos error.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package kairos
