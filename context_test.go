// context_test.go: Tests for the loader context and its buffered mutations
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"path/filepath"
	"slices"
	"testing"
)

func mustNormalize(t *testing.T, path string) string {
	t.Helper()
	p, err := normalizePath(path)
	if err != nil {
		t.Fatalf("Failed to normalize %s: %v", path, err)
	}
	return p
}

func TestContext_Accessors(t *testing.T) {
	ctx := newContext("/cfg/a.json", []string{"/cfg/b.json", "/cfg/a.json"}, []string{"/cfg/a.json", "/cfg/b.json"})

	if ctx.PrimaryPath() != "/cfg/a.json" {
		t.Errorf("PrimaryPath = %s", ctx.PrimaryPath())
	}
	if p, ok := ctx.Path(); !ok || p != "/cfg/b.json" {
		t.Errorf("Path() = %q, %v; want first modified path", p, ok)
	}

	mod := ctx.ModifiedPaths()
	mod[0] = "changed"
	if ctx.ModifiedPaths()[0] != "/cfg/b.json" {
		t.Error("ModifiedPaths must return a copy")
	}

	empty := newContext("/cfg/a.json", nil, nil)
	if _, ok := empty.Path(); ok {
		t.Error("Path() should report false without modified paths")
	}
}

func TestContext_NoMutationMeansNoChange(t *testing.T) {
	ctx := newContext("/cfg/a.json", nil, []string{"/cfg/a.json"})
	if _, changed := ctx.changes(); changed {
		t.Error("Untouched context should report no change")
	}
}

func TestContext_AddAndRemove(t *testing.T) {
	dir := t.TempDir()
	a := mustNormalize(t, filepath.Join(dir, "a.json"))
	b := filepath.Join(dir, "b.json")

	ctx := newContext(a, []string{a}, []string{a})
	if err := ctx.AddPath(b); err != nil {
		t.Fatalf("Failed to add path: %v", err)
	}
	if err := ctx.AddPath(b); err != nil {
		t.Fatalf("Failed to add duplicate path: %v", err)
	}

	got, changed := ctx.changes()
	if !changed || len(got) != 2 || !slices.Contains(got, mustNormalize(t, b)) {
		t.Fatalf("Expected a and b, got %v", got)
	}

	if err := ctx.RemovePath(a); err != nil {
		t.Fatalf("Failed to remove path: %v", err)
	}
	if err := ctx.RemovePath(filepath.Join(dir, "never-watched.json")); err != nil {
		t.Fatalf("Removing an unwatched path should be a no-op: %v", err)
	}

	got, _ = ctx.changes()
	if len(got) != 1 || got[0] != mustNormalize(t, b) {
		t.Errorf("Expected only b, got %v", got)
	}

	// WatchedPaths still reports the set as it was at the start
	if w := ctx.WatchedPaths(); len(w) != 1 || w[0] != a {
		t.Errorf("WatchedPaths changed during the invocation: %v", w)
	}
}

func TestContext_SetPaths(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")

	ctx := newContext(a, nil, []string{mustNormalize(t, a)})
	if err := ctx.SetPaths([]string{b, b}); err != nil {
		t.Fatalf("Failed to set paths: %v", err)
	}
	got, changed := ctx.changes()
	if !changed || len(got) != 1 || got[0] != mustNormalize(t, b) {
		t.Errorf("Expected [b], got %v", got)
	}

	if err := ctx.SetPaths(nil); err != nil {
		t.Fatalf("Failed to clear paths: %v", err)
	}
	if got, changed := ctx.changes(); !changed || len(got) != 0 {
		t.Errorf("Expected an empty requested set, got %v (changed=%v)", got, changed)
	}
}

func TestContext_InvalidPathRejected(t *testing.T) {
	ctx := newContext("/cfg/a.json", nil, nil)

	if err := ctx.AddPath(""); err == nil {
		t.Error("Empty path should be rejected")
	}
	if err := ctx.AddPath("/cfg/%2e%2e/secret"); err == nil {
		t.Error("Encoded traversal should be rejected")
	}
	if _, changed := ctx.changes(); changed {
		t.Error("Rejected mutations must not change the set")
	}
}

func TestContext_ExpiredRejectsMutations(t *testing.T) {
	dir := t.TempDir()
	ctx := newContext(filepath.Join(dir, "a.json"), nil, nil)
	ctx.expire()

	for name, err := range map[string]error{
		"AddPath":    ctx.AddPath(filepath.Join(dir, "b.json")),
		"RemovePath": ctx.RemovePath(filepath.Join(dir, "a.json")),
		"SetPaths":   ctx.SetPaths([]string{filepath.Join(dir, "c.json")}),
	} {
		if errorCode(err) != ErrCodeContextExpired {
			t.Errorf("%s after expiry: expected %s, got %v", name, ErrCodeContextExpired, err)
		}
	}
}
