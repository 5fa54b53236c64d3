// audit_test.go - Tests for the Kairos audit trail
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestAuditLogger(t *testing.T, outputFile string, minLevel AuditLevel) *AuditLogger {
	t.Helper()
	auditor, err := NewAuditLogger(AuditConfig{
		Enabled:       true,
		OutputFile:    outputFile,
		MinLevel:      minLevel,
		BufferSize:    10,
		FlushInterval: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Failed to create audit logger: %v", err)
	}
	return auditor
}

func TestAuditLogger(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	auditor := newTestAuditLogger(t, auditPath, AuditInfo)

	auditor.LogFileWatch("watch_start", "/etc/app/config.json")
	auditor.LogReload("/etc/app/config.json", 2, []string{"/etc/app/config.json"})
	auditor.LogReloadError("/etc/app/config.json", os.ErrPermission)
	auditor.LogDependencyChange([]string{"/etc/app/extra.json"}, []string{"/etc/app/old.json"})
	auditor.LogSecurityEvent("callback_panic", "after_update hook panicked", map[string]interface{}{"hook": "after_update"})

	if err := auditor.Flush(); err != nil {
		t.Fatalf("Failed to flush audit logger: %v", err)
	}

	data, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("Failed to read audit file: %v", err)
	}
	content := string(data)
	for _, want := range []string{"watch_start", "reload_success", "reload_error", "dependency_added", "dependency_removed", "callback_panic"} {
		if !strings.Contains(content, want) {
			t.Errorf("Audit file missing event %q", want)
		}
	}

	if err := auditor.Close(); err != nil {
		t.Fatalf("Failed to close audit logger: %v", err)
	}
	// Close is idempotent
	if err := auditor.Close(); err != nil {
		t.Errorf("Second Close should be a no-op: %v", err)
	}
}

func TestAuditLogger_MinLevel(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	auditor := newTestAuditLogger(t, auditPath, AuditCritical)

	auditor.LogFileWatch("watch_start", "/etc/app/config.json") // INFO
	auditor.LogReload("/etc/app/config.json", 1, nil)             // INFO
	auditor.LogSecurityEvent("callback_panic", "hook panicked", nil) // SECURITY

	if err := auditor.Close(); err != nil {
		t.Fatalf("Failed to close audit logger: %v", err)
	}

	events, err := QueryAuditEvents(auditPath, 0, "")
	if err != nil {
		t.Fatalf("Failed to query audit events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected only the security event, got %d events", len(events))
	}
	if events[0].Event != "callback_panic" || events[0].Level != AuditSecurity {
		t.Errorf("Unexpected event: %+v", events[0])
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	auditor, err := NewAuditLogger(AuditConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Failed to create disabled audit logger: %v", err)
	}

	auditor.LogReload("/etc/app/config.json", 1, nil)
	if err := auditor.Flush(); err != nil {
		t.Errorf("Flush on disabled logger should succeed: %v", err)
	}
	if _, err := auditor.Stats(); err == nil {
		t.Error("Stats on disabled logger should fail")
	}
	if err := auditor.Close(); err != nil {
		t.Errorf("Close on disabled logger should succeed: %v", err)
	}

	var nilLogger *AuditLogger
	nilLogger.LogSecurityEvent("callback_panic", "hook panicked", nil)
	if err := nilLogger.Flush(); err != nil {
		t.Errorf("Flush on nil logger should succeed: %v", err)
	}
	if err := nilLogger.Close(); err != nil {
		t.Errorf("Close on nil logger should succeed: %v", err)
	}
}

func TestAuditLogger_BufferFlush(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	auditor, err := NewAuditLogger(AuditConfig{
		Enabled:    true,
		OutputFile: auditPath,
		MinLevel:   AuditInfo,
		BufferSize: 3,
	})
	if err != nil {
		t.Fatalf("Failed to create audit logger: %v", err)
	}
	defer func() {
		if err := auditor.Close(); err != nil {
			t.Errorf("Failed to close audit logger: %v", err)
		}
	}()

	// A full buffer is written without an explicit Flush
	for i := 0; i < 3; i++ {
		auditor.LogReload("/etc/app/config.json", uint64(i+1), nil)
	}

	events, err := QueryAuditEvents(auditPath, 0, "reload_success")
	if err != nil {
		t.Fatalf("Failed to query audit events: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("Expected 3 events after buffer fill, got %d", len(events))
	}
}

func TestAuditLogger_Checksum(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	auditor := newTestAuditLogger(t, auditPath, AuditInfo)
	auditor.LogReload("/etc/app/config.json", 7, []string{"/etc/app/config.json"})
	if err := auditor.Close(); err != nil {
		t.Fatalf("Failed to close audit logger: %v", err)
	}

	events, err := QueryAuditEvents(auditPath, 0, "")
	if err != nil {
		t.Fatalf("Failed to query audit events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if !VerifyChecksum(events[0]) {
		t.Error("Checksum should verify for an untouched event")
	}

	tampered := events[0]
	tampered.FilePath = "/etc/app/other.json"
	if VerifyChecksum(tampered) {
		t.Error("Checksum should not verify after tampering")
	}
}

func TestAuditLevel_String(t *testing.T) {
	cases := map[AuditLevel]string{
		AuditInfo:      "INFO",
		AuditWarn:      "WARN",
		AuditCritical:  "CRITICAL",
		AuditSecurity:  "SECURITY",
		AuditLevel(99): "UNKNOWN",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("AuditLevel(%d).String() = %q, want %q", level, got, want)
		}
	}

	for _, name := range []string{"info", "WARN", "warning", "critical", "SECURITY"} {
		if _, ok := parseAuditLevel(name); !ok {
			t.Errorf("parseAuditLevel(%q) should succeed", name)
		}
	}
	if _, ok := parseAuditLevel("verbose"); ok {
		t.Error("parseAuditLevel should reject unknown names")
	}
}
