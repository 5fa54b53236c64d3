// notifier.go: fsnotify directory notifier feeding the event ring
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	goerrors "errors"
	"os"
	"sync"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
	"github.com/fsnotify/fsnotify"
)

// dirNotifier watches directories, not files, so that creation and removal
// of a target are observable. It reports every entry under a watched
// directory; filtering is left to the debouncer.
type dirNotifier struct {
	fsw  *fsnotify.Watcher
	ring *eventRing
	errs chan error

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// newDirNotifier starts the forwarder goroutine that copies fsnotify events
// into ring. Forwarding never blocks on the reload loop.
func newDirNotifier(ring *eventRing) (*dirNotifier, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeWatchFailed, "failed to create filesystem watcher")
	}

	n := &dirNotifier{
		fsw:  fsw,
		ring: ring,
		errs: make(chan error, 8),
		done: make(chan struct{}),
	}

	n.wg.Add(1)
	go n.forward()
	return n, nil
}

// watch subscribes to dir. A missing directory is a distinct error because
// it is the common misconfiguration.
func (n *dirNotifier) watch(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New(ErrCodeDirectoryMissing, "parent directory does not exist").
				WithContext("directory", dir)
		}
		return errors.Wrap(err, ErrCodeWatchFailed, "failed to stat directory").
			WithContext("directory", dir)
	}
	if !info.IsDir() {
		return errors.New(ErrCodeWatchFailed, "parent path is not a directory").
			WithContext("directory", dir)
	}

	if err := n.fsw.Add(dir); err != nil {
		return errors.Wrap(err, ErrCodeWatchFailed, "failed to watch directory").
			WithContext("directory", dir)
	}
	return nil
}

// unwatch releases the subscription for dir. A directory that vanished has
// already been dropped by the OS, so that case is not an error.
func (n *dirNotifier) unwatch(dir string) error {
	if err := n.fsw.Remove(dir); err != nil && !goerrors.Is(err, fsnotify.ErrNonExistentWatch) {
		return errors.Wrap(err, ErrCodeWatchFailed, "failed to unwatch directory").
			WithContext("directory", dir)
	}
	return nil
}

// failures returns notifier-level errors such as inotify queue overflow.
func (n *dirNotifier) failures() <-chan error {
	return n.errs
}

func (n *dirNotifier) forward() {
	defer n.wg.Done()

	for {
		select {
		case <-n.done:
			return
		case ev, ok := <-n.fsw.Events:
			if !ok {
				return
			}
			op := translateOp(ev.Op)
			if op == 0 {
				continue
			}
			n.ring.write(ev.Name, op, timecache.CachedTime())
		case err, ok := <-n.fsw.Errors:
			if !ok {
				return
			}
			select {
			case n.errs <- err:
			default:
				// Loop is busy and already has errors queued
			}
		}
	}
}

// close stops forwarding and releases every OS watch.
func (n *dirNotifier) close() error {
	n.closeOnce.Do(func() {
		close(n.done)
		n.ring.close()
		n.closeErr = n.fsw.Close()
		n.wg.Wait()
	})
	return n.closeErr
}

// translateOp maps fsnotify operations onto Op. Chmod-only events map to 0.
func translateOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpRemoved
	case op.Has(fsnotify.Create):
		return OpCreated
	case op.Has(fsnotify.Write):
		return OpModified
	default:
		return 0
	}
}
