// audit_backend_test.go - Tests for the SQLite and JSONL audit backends
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// createTestSQLiteBackend creates a SQLite backend in a temporary directory
func createTestSQLiteBackend(t *testing.T) (*sqliteAuditBackend, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test_audit.db")
	backend, err := newSQLiteBackend(AuditConfig{Enabled: true, OutputFile: dbPath, BufferSize: 5})
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	return backend, dbPath
}

func testAuditEvent(event, path string) AuditEvent {
	e := AuditEvent{
		Timestamp:   time.Now(),
		Level:       AuditInfo,
		Event:       event,
		Component:   auditComponent,
		FilePath:    path,
		ProcessID:   os.Getpid(),
		ProcessName: "kairos.test",
		Context:     map[string]interface{}{"generation": 1},
	}
	e.Checksum = generateChecksum(e)
	return e
}

func TestBackendSelection(t *testing.T) {
	dir := t.TempDir()

	t.Run("jsonl_extension", func(t *testing.T) {
		backend, err := createAuditBackend(AuditConfig{Enabled: true, OutputFile: filepath.Join(dir, "audit.jsonl")})
		if err != nil {
			t.Fatalf("Failed to create backend: %v", err)
		}
		defer func() { _ = backend.Close() }()
		if _, ok := backend.(*jsonlAuditBackend); !ok {
			t.Errorf("Expected JSONL backend, got %T", backend)
		}
	})

	t.Run("db_extension", func(t *testing.T) {
		backend, err := createAuditBackend(AuditConfig{Enabled: true, OutputFile: filepath.Join(dir, "audit.db")})
		if err != nil {
			t.Fatalf("Failed to create backend: %v", err)
		}
		defer func() { _ = backend.Close() }()
		if _, ok := backend.(*sqliteAuditBackend); !ok {
			t.Errorf("Expected SQLite backend, got %T", backend)
		}
	})

	t.Run("jsonl_requires_path", func(t *testing.T) {
		if _, err := newJSONLBackend(""); err == nil {
			t.Error("JSONL backend should require a path")
		}
	})
}

func TestSQLiteBackend_WriteAndVerify(t *testing.T) {
	backend, dbPath := createTestSQLiteBackend(t)

	events := []AuditEvent{
		testAuditEvent("reload_success", "/etc/app/a.json"),
		testAuditEvent("reload_error", "/etc/app/a.json"),
		testAuditEvent("reload_success", "/etc/app/b.json"),
	}
	if err := backend.Write(events); err != nil {
		t.Fatalf("Failed to write events: %v", err)
	}

	stats, err := backend.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TotalEvents != 3 {
		t.Errorf("Expected 3 events, got %d", stats.TotalEvents)
	}
	if stats.EventsByName["reload_success"] != 2 {
		t.Errorf("Expected 2 reload_success events, got %d", stats.EventsByName["reload_success"])
	}
	if stats.EventsByLevel["INFO"] != 3 {
		t.Errorf("Expected 3 INFO events, got %d", stats.EventsByLevel["INFO"])
	}
	if stats.SchemaVersion != auditSchemaVersion {
		t.Errorf("Expected schema version %d, got %d", auditSchemaVersion, stats.SchemaVersion)
	}
	if stats.OldestEvent == nil || stats.NewestEvent == nil {
		t.Error("Expected event time range to be set")
	}

	if err := backend.Close(); err != nil {
		t.Fatalf("Failed to close backend: %v", err)
	}
	if err := backend.Write(events[:1]); err == nil {
		t.Error("Write after Close should fail")
	}
	if err := backend.Close(); err != nil {
		t.Errorf("Second Close should be a no-op: %v", err)
	}

	// Read side works on the closed file
	got, err := QueryAuditEvents(dbPath, 0, "reload_success")
	if err != nil {
		t.Fatalf("Failed to query audit events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 filtered events, got %d", len(got))
	}
	if got[0].FilePath != "/etc/app/a.json" || got[1].FilePath != "/etc/app/b.json" {
		t.Errorf("Expected oldest-first order, got %s then %s", got[0].FilePath, got[1].FilePath)
	}

	limited, err := QueryAuditEvents(dbPath, 1, "")
	if err != nil {
		t.Fatalf("Failed to query audit events: %v", err)
	}
	if len(limited) != 1 || limited[0].FilePath != "/etc/app/b.json" {
		t.Errorf("Limit should keep the newest event, got %+v", limited)
	}
}

func TestSQLiteBackend_Schema(t *testing.T) {
	backend, dbPath := createTestSQLiteBackend(t)
	if err := backend.Close(); err != nil {
		t.Fatalf("Failed to close backend: %v", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	for _, index := range []string{"idx_audit_timestamp", "idx_audit_event", "idx_audit_file"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&name)
		if err != nil {
			t.Errorf("Index %s missing: %v", index, err)
		}
	}

	// Reopening an existing database keeps a single schema row
	reopened, err := newSQLiteBackend(AuditConfig{Enabled: true, OutputFile: dbPath})
	if err != nil {
		t.Fatalf("Failed to reopen SQLite backend: %v", err)
	}
	if err := reopened.Close(); err != nil {
		t.Fatalf("Failed to close reopened backend: %v", err)
	}

	var versions int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_info").Scan(&versions); err != nil {
		t.Fatalf("Failed to count schema rows: %v", err)
	}
	if versions != 1 {
		t.Errorf("Expected 1 schema row, got %d", versions)
	}
}

func TestSQLiteBackend_ConcurrentWrites(t *testing.T) {
	backend, _ := createTestSQLiteBackend(t)
	defer func() { _ = backend.Close() }()

	const writers = 8
	const perWriter = 10

	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				if err := backend.Write([]AuditEvent{testAuditEvent("reload_success", "/etc/app/a.json")}); err != nil {
					errCh <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("Concurrent write failed: %v", err)
	}

	stats, err := backend.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TotalEvents != writers*perWriter {
		t.Errorf("Expected %d events, got %d", writers*perWriter, stats.TotalEvents)
	}
}

func TestAuditLogger_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	auditor := newTestAuditLogger(t, dbPath, AuditInfo)

	auditor.LogFileWatch("watch_start", "/etc/app/config.json")
	auditor.LogReload("/etc/app/config.json", 2, []string{"/etc/app/config.json"})
	auditor.LogSecurityEvent("event_overflow", "ring overflow", nil)

	stats, err := auditor.Stats()
	if err != nil {
		t.Fatalf("Failed to get audit stats: %v", err)
	}
	if stats.TotalEvents != 3 {
		t.Errorf("Expected 3 events, got %d", stats.TotalEvents)
	}
	if stats.EventsByLevel["SECURITY"] != 1 {
		t.Errorf("Expected 1 SECURITY event, got %d", stats.EventsByLevel["SECURITY"])
	}

	if err := auditor.Close(); err != nil {
		t.Fatalf("Failed to close audit logger: %v", err)
	}

	events, err := QueryAuditEvents(dbPath, 0, "reload_success")
	if err != nil {
		t.Fatalf("Failed to query audit events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 reload event, got %d", len(events))
	}
	if events[0].Level != AuditInfo {
		t.Errorf("Expected INFO level, got %s", events[0].Level)
	}
	if gen, ok := events[0].Context["generation"].(float64); !ok || gen != 2 {
		t.Errorf("Expected generation 2 in context, got %v", events[0].Context["generation"])
	}
}

func TestJSONLBackend_Stats(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "nested", "audit.jsonl")
	backend, err := newJSONLBackend(auditPath)
	if err != nil {
		t.Fatalf("Failed to create JSONL backend: %v", err)
	}

	first := testAuditEvent("reload_success", "/etc/app/a.json")
	second := testAuditEvent("dependency_added", "/etc/app/b.json")
	second.Timestamp = first.Timestamp.Add(time.Second)
	if err := backend.Write([]AuditEvent{first, second}); err != nil {
		t.Fatalf("Failed to write events: %v", err)
	}
	if err := backend.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	stats, err := backend.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TotalEvents != 2 {
		t.Errorf("Expected 2 events, got %d", stats.TotalEvents)
	}
	if stats.NewestEvent == nil || !stats.NewestEvent.After(*stats.OldestEvent) {
		t.Error("Expected newest event after oldest event")
	}
	if stats.DatabaseSize == 0 {
		t.Error("Expected non-zero file size")
	}

	if err := backend.Close(); err != nil {
		t.Fatalf("Failed to close backend: %v", err)
	}
	if err := backend.Write([]AuditEvent{first}); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestReadAuditStats_Missing(t *testing.T) {
	dir := t.TempDir()
	if _, err := ReadAuditStats(filepath.Join(dir, "missing.db")); err == nil {
		t.Error("ReadAuditStats should fail for a missing database")
	}
	if _, err := QueryAuditEvents(filepath.Join(dir, "missing.jsonl"), 0, ""); err == nil {
		t.Error("QueryAuditEvents should fail for a missing JSONL file")
	}
}

func TestReadJSONLEvents_Corrupt(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	if err := os.WriteFile(auditPath, []byte("{not json}\n"), 0600); err != nil {
		t.Fatalf("Failed to write audit file: %v", err)
	}
	if _, err := QueryAuditEvents(auditPath, 0, ""); err == nil {
		t.Error("QueryAuditEvents should fail on a corrupt line")
	}
}
