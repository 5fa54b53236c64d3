// depset.go: Dependency set with refcounted parent-directory subscriptions
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"path/filepath"
	"slices"
	"sync/atomic"

	"github.com/agilira/go-errors"
)

// dirHandle is the watch token shared by every path in one directory.
type dirHandle struct {
	dir  string
	refs int
}

// directoryWatcher is the part of the notifier the dependency set drives.
type directoryWatcher interface {
	watch(dir string) error
	unwatch(dir string) error
}

// dependencySet maps each watched path to its directory token. It is
// mutated only by the loop goroutine; other goroutines read the sorted
// snapshot published after every change.
type dependencySet struct {
	paths map[string]*dirHandle
	dirs  map[string]*dirHandle
	limit int

	snapshot atomic.Pointer[[]string]
	dirCount atomic.Int64
}

func newDependencySet(limit int) *dependencySet {
	d := &dependencySet{
		paths: make(map[string]*dirHandle),
		dirs:  make(map[string]*dirHandle),
		limit: limit,
	}
	empty := []string{}
	d.snapshot.Store(&empty)
	return d
}

// contains reports whether path (already normalized) is a dependency.
func (d *dependencySet) contains(path string) bool {
	_, ok := d.paths[path]
	return ok
}

// list returns the current paths, sorted.
func (d *dependencySet) list() []string {
	out := make([]string, 0, len(d.paths))
	for p := range d.paths {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// published returns the snapshot safe for any goroutine.
func (d *dependencySet) published() []string {
	return slices.Clone(*d.snapshot.Load())
}

func (d *dependencySet) dirsWatched() int {
	return int(d.dirCount.Load())
}

// reconcileResult describes what a reconcile changed.
type reconcileResult struct {
	added   []string
	removed []string
	errs    []error
}

// reconcile makes the set equal to target. New directories are subscribed
// before unused ones are released, so a path moving within a directory
// never drops the OS watch. A path whose directory cannot be watched, or
// that exceeds the limit, is left out and reported in errs.
func (d *dependencySet) reconcile(target []string, w directoryWatcher) reconcileResult {
	var res reconcileResult

	wanted := make(map[string]struct{}, len(target))
	for _, p := range target {
		wanted[p] = struct{}{}
	}

	kept := 0
	for p := range d.paths {
		if _, ok := wanted[p]; ok {
			kept++
		}
	}

	size := kept
	for _, p := range target {
		if _, ok := d.paths[p]; ok {
			continue
		}
		if size >= d.limit {
			res.errs = append(res.errs, errors.New(ErrCodeTooManyPaths, "maximum watched paths exceeded").
				WithContext("path", p).
				WithContext("max_paths", d.limit))
			continue
		}

		dir := filepath.Dir(p)
		h, ok := d.dirs[dir]
		if !ok {
			if err := w.watch(dir); err != nil {
				res.errs = append(res.errs, err)
				continue
			}
			h = &dirHandle{dir: dir}
			d.dirs[dir] = h
		}
		h.refs++
		d.paths[p] = h
		res.added = append(res.added, p)
		size++
	}

	for p, h := range d.paths {
		if _, ok := wanted[p]; ok {
			continue
		}
		delete(d.paths, p)
		res.removed = append(res.removed, p)
		h.refs--
		if h.refs == 0 {
			delete(d.dirs, h.dir)
			if err := w.unwatch(h.dir); err != nil {
				res.errs = append(res.errs, err)
			}
		}
	}

	slices.Sort(res.removed)
	d.publish()
	return res
}

// release drops every subscription.
func (d *dependencySet) release(w directoryWatcher) {
	for dir := range d.dirs {
		_ = w.unwatch(dir)
	}
	clear(d.paths)
	clear(d.dirs)
	d.publish()
}

func (d *dependencySet) publish() {
	list := d.list()
	d.snapshot.Store(&list)
	d.dirCount.Store(int64(len(d.dirs)))
}
