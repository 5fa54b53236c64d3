// options.go: Watch assembly options
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"github.com/agilira/go-errors"
)

// InitialPolicy decides what Build does when the initial load fails.
type InitialPolicy int

const (
	// InitialFallback reports the failure to OnError and publishes
	// Options.Default, or the zero value of T when no default is set.
	InitialFallback InitialPolicy = iota

	// InitialRequireDefault falls back to Options.Default only when one is
	// set, otherwise Build fails.
	InitialRequireDefault

	// InitialStrict makes any initial load failure fail Build.
	InitialStrict
)

func (p InitialPolicy) String() string {
	switch p {
	case InitialFallback:
		return "fallback"
	case InitialRequireDefault:
		return "require-default"
	case InitialStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// Options assembles a Watch. Files and Loader are required.
type Options[T any] struct {
	Config Config

	// Files is the initial dependency set. The parent directory of every
	// file must exist; the files themselves need not.
	Files []string

	// Loader produces a value from the watched files.
	Loader Loader[T]

	// OnError receives loader failures and notifier errors.
	// Default: DefaultErrorHandler (stderr)
	OnError ErrorHandler

	// AfterUpdate runs after every publish, the initial one included.
	AfterUpdate UpdateHandler[T]

	// Hooks run after AfterUpdate, in order.
	Hooks []UpdateHandler[T]

	// Default is published when the initial load fails (see InitialPolicy).
	Default *T

	InitialPolicy InitialPolicy
}

// validate checks the options that do not depend on the filesystem.
func (o *Options[T]) validate() error {
	if o.Loader == nil {
		return errors.New(ErrCodeInvalidConfig, "loader cannot be nil")
	}
	if len(o.Files) == 0 {
		return errors.New(ErrCodeInvalidConfig, "at least one file must be watched")
	}
	if o.InitialPolicy < InitialFallback || o.InitialPolicy > InitialStrict {
		return errors.New(ErrCodeInvalidConfig, "unknown initial load policy").
			WithContext("policy", int(o.InitialPolicy))
	}
	return nil
}
