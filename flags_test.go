// flags_test.go: Tests for command-line configuration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	goerrors "errors"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigFromFlags_Defaults(t *testing.T) {
	cfg, err := ConfigFromFlags(nil)
	if err != nil {
		t.Fatalf("Failed to build config from empty flags: %v", err)
	}
	if cfg.Debounce != DefaultDebounce {
		t.Errorf("Expected default debounce, got %v", cfg.Debounce)
	}
	if cfg.MaxWatchedPaths != DefaultMaxWatchedPaths {
		t.Errorf("Expected default max paths, got %d", cfg.MaxWatchedPaths)
	}
}

func TestConfigFromFlags_Values(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	cfg, err := ConfigFromFlags([]string{
		"--debounce", "40ms",
		"--max-watched-paths", "12",
		"--event-ring-capacity", "64",
		"--audit",
		"--audit-file", auditPath,
		"--audit-level", "critical",
	})
	if err != nil {
		t.Fatalf("Failed to build config from flags: %v", err)
	}

	if cfg.Debounce != 40*time.Millisecond {
		t.Errorf("Expected 40ms debounce, got %v", cfg.Debounce)
	}
	if cfg.MaxWatchedPaths != 12 || cfg.EventRingCapacity != 64 {
		t.Errorf("Unexpected limits: %+v", cfg)
	}
	if !cfg.Audit.Enabled || cfg.Audit.OutputFile != auditPath || cfg.Audit.MinLevel != AuditCritical {
		t.Errorf("Unexpected audit config: %+v", cfg.Audit)
	}
	if cfg.Audit.BufferSize == 0 {
		t.Error("Expected audit defaults to be applied")
	}
}

func TestConfigFromFlags_OverridesEnvironment(t *testing.T) {
	t.Setenv("KAIROS_MAX_WATCHED_PATHS", "42")
	t.Setenv("KAIROS_DEBOUNCE", "300ms")

	cfg, err := ConfigFromFlags([]string{"--max-watched-paths", "7"})
	if err != nil {
		t.Fatalf("Failed to build config: %v", err)
	}
	if cfg.MaxWatchedPaths != 7 {
		t.Errorf("Flag should override environment, got %d", cfg.MaxWatchedPaths)
	}
	if cfg.Debounce != 300*time.Millisecond {
		t.Errorf("Environment should fill unset flags, got %v", cfg.Debounce)
	}
}

func TestConfigFromFlags_Errors(t *testing.T) {
	if _, err := ConfigFromFlags([]string{"--help"}); !goerrors.Is(err, ErrHelpRequested) {
		t.Errorf("Expected ErrHelpRequested, got %v", err)
	}
	if _, err := ConfigFromFlags([]string{"--debounce", "2m"}); !goerrors.Is(err, ErrDebounceTooLarge) {
		t.Errorf("Expected ErrDebounceTooLarge, got %v", err)
	}
	if _, err := ConfigFromFlags([]string{"--audit-level", "chatty"}); err == nil {
		t.Error("Expected error for unknown audit level")
	}
	if _, err := ConfigFromFlags([]string{"--debounce", "soon"}); err == nil {
		t.Error("Expected error for unparsable debounce")
	}
}

func TestFlagNames(t *testing.T) {
	names := make(map[string]bool)
	for _, name := range FlagNames(NewConfigFlagSet("kairos", nil)) {
		names[name] = true
	}

	for _, want := range []string{"audit", "audit-file", "audit-level", "debounce", "event-ring-capacity", "max-watched-paths", "no-debounce"} {
		if !names[want] {
			t.Errorf("Expected flag %q to be registered", want)
		}
	}
}
