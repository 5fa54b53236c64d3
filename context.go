// context.go: Per-invocation view of the dependency set
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"slices"

	"github.com/agilira/go-errors"
)

// Context is passed to the loader and the callbacks of one reload cycle.
// It must not be retained after the call returns.
//
// Path mutations are buffered and applied when the cycle ends, whether the
// load succeeded or not. Changes to newly added paths trigger reloads from
// the next detection cycle on.
type Context struct {
	primary  string
	modified []string
	watched  []string

	pending []string // nil until the first mutation
	expired bool
}

func newContext(primary string, modified, watched []string) *Context {
	return &Context{
		primary:  primary,
		modified: modified,
		watched:  watched,
	}
}

// Path returns the first path that triggered this invocation.
func (c *Context) Path() (string, bool) {
	if len(c.modified) == 0 {
		return "", false
	}
	return c.modified[0], true
}

// ModifiedPaths returns every path coalesced into this invocation, in the
// order their quiet windows elapsed. The initial load reports every file.
func (c *Context) ModifiedPaths() []string {
	return slices.Clone(c.modified)
}

// WatchedPaths returns the dependency set as it was when the invocation began.
func (c *Context) WatchedPaths() []string {
	return slices.Clone(c.watched)
}

// PrimaryPath returns the first file the watch was built with. Format
// loaders read this file.
func (c *Context) PrimaryPath() string {
	return c.primary
}

// AddPath adds path to the dependency set.
func (c *Context) AddPath(path string) error {
	p, err := c.prepare(path)
	if err != nil {
		return err
	}
	if !slices.Contains(c.pending, p) {
		c.pending = append(c.pending, p)
	}
	return nil
}

// RemovePath removes path from the dependency set. Removing a path that is
// not watched is a no-op.
func (c *Context) RemovePath(path string) error {
	p, err := c.prepare(path)
	if err != nil {
		return err
	}
	c.pending = slices.DeleteFunc(c.pending, func(s string) bool { return s == p })
	return nil
}

// SetPaths replaces the whole dependency set.
func (c *Context) SetPaths(paths []string) error {
	if c.expired {
		return errors.New(ErrCodeContextExpired, "context used after its invocation returned")
	}
	normalized, err := normalizePaths(paths)
	if err != nil {
		return err
	}
	c.pending = normalized
	return nil
}

// prepare validates the context and path and materializes the pending set.
func (c *Context) prepare(path string) (string, error) {
	if c.expired {
		return "", errors.New(ErrCodeContextExpired, "context used after its invocation returned")
	}
	p, err := normalizePath(path)
	if err != nil {
		return "", err
	}
	if c.pending == nil {
		c.pending = slices.Clone(c.watched)
		if c.pending == nil {
			c.pending = []string{}
		}
	}
	return p, nil
}

// changes returns the requested set and whether any mutation happened.
func (c *Context) changes() ([]string, bool) {
	return c.pending, c.pending != nil
}

// expire makes further mutations fail.
func (c *Context) expire() {
	c.expired = true
}
