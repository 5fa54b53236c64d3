// cli_test.go: CLI integration testing
//
// Philosophy:
// - Test the Manager directly
// - Use real files in isolated temp directories
// - Keep watch tests bounded with --timeout
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/agilira/kairos"
)

// =============================================================================
// CLI TEST INFRASTRUCTURE
// =============================================================================

// CLITestFixture manages CLI testing in isolated environments
type CLITestFixture struct {
	t       *testing.T
	tempDir string
	manager *Manager
}

// NewCLITestFixture creates an isolated environment for CLI testing
func NewCLITestFixture(t *testing.T) *CLITestFixture {
	t.Helper()
	return &CLITestFixture{
		t:       t,
		tempDir: t.TempDir(),
		manager: NewManager(),
	}
}

// RunCLI executes CLI commands via Manager
func (f *CLITestFixture) RunCLI(args ...string) error {
	f.t.Helper()
	return f.manager.Run(args)
}

// CreateTempConfig creates a config file in the temp directory
func (f *CLITestFixture) CreateTempConfig(name, content string) string {
	f.t.Helper()

	configPath := filepath.Join(f.tempDir, name)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		f.t.Fatalf("Failed to create temp config: %v", err)
	}
	return configPath
}

// =============================================================================
// MANAGER
// =============================================================================

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager() returned nil")
	}
	if manager.app == nil {
		t.Fatal("Manager.app not initialized")
	}
	if manager.auditLogger != nil {
		t.Error("Manager.auditLogger should be nil by default")
	}
}

func TestManagerWithAudit(t *testing.T) {
	auditLogger, err := kairos.NewAuditLogger(kairos.AuditConfig{
		Enabled:       true,
		OutputFile:    filepath.Join(t.TempDir(), "cli_audit.jsonl"),
		MinLevel:      kairos.AuditInfo,
		BufferSize:    10,
		FlushInterval: time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create audit logger: %v", err)
	}
	defer func() {
		if err := auditLogger.Close(); err != nil {
			t.Logf("Failed to close audit logger: %v", err)
		}
	}()

	manager := NewManager().WithAudit(auditLogger)
	if manager.auditLogger != auditLogger {
		t.Fatal("WithAudit() did not set the audit logger")
	}
}

func TestManager_RunResetsFlags(t *testing.T) {
	fixture := NewCLITestFixture(t)

	settings := fixture.CreateTempConfig("settings.txt", "[server]\nport = 8080\n")
	if err := fixture.RunCLI("validate", settings, "--format", "ini"); err != nil {
		t.Fatalf("Failed to validate INI with explicit format: %v", err)
	}

	// --format from the previous run must not apply here
	invalid := fixture.CreateTempConfig("broken.json", `{"value": `)
	err := fixture.RunCLI("validate", invalid)
	if err == nil {
		t.Fatal("validate should detect JSON from the extension and reject the file")
	}
	if code := kairos.GetValidationErrorCode(err); code != kairos.ErrCodeParseFailed {
		t.Errorf("Expected %s, got %s (%v)", kairos.ErrCodeParseFailed, code, err)
	}
}

// =============================================================================
// VALIDATE
// =============================================================================

func TestCLI_Validate(t *testing.T) {
	fixture := NewCLITestFixture(t)

	t.Run("valid_json", func(t *testing.T) {
		path := fixture.CreateTempConfig("valid.json", `{"value": 1, "name": "kairos"}`)
		if err := fixture.RunCLI("validate", path); err != nil {
			t.Errorf("validate should accept valid JSON: %v", err)
		}
	})

	t.Run("valid_yaml", func(t *testing.T) {
		path := fixture.CreateTempConfig("valid.yaml", "value: 1\nname: kairos\n")
		if err := fixture.RunCLI("validate", path); err != nil {
			t.Errorf("validate should accept valid YAML: %v", err)
		}
	})

	t.Run("explicit_format", func(t *testing.T) {
		path := fixture.CreateTempConfig("settings.txt", "[server]\nport = 8080\n")
		if err := fixture.RunCLI("validate", path, "--format", "ini"); err != nil {
			t.Errorf("validate should accept INI with explicit format: %v", err)
		}
	})

	t.Run("invalid_json", func(t *testing.T) {
		path := fixture.CreateTempConfig("invalid.json", `{"value": `)
		err := fixture.RunCLI("validate", path)
		if err == nil {
			t.Fatal("validate should reject malformed JSON")
		}
		if !kairos.IsValidationError(err) {
			t.Errorf("Expected a Kairos error code, got: %v", err)
		}
	})

	t.Run("missing_file", func(t *testing.T) {
		if err := fixture.RunCLI("validate", filepath.Join(fixture.tempDir, "missing.json")); err == nil {
			t.Error("validate should fail for a missing file")
		}
	})
}

// =============================================================================
// WATCH
// =============================================================================

func TestCLI_Watch(t *testing.T) {
	fixture := NewCLITestFixture(t)

	t.Run("timeout_returns_cleanly", func(t *testing.T) {
		path := fixture.CreateTempConfig("watch.json", `{"value": 1}`)
		if err := fixture.RunCLI("watch", path, "--timeout", "100ms", "--debounce", "20ms"); err != nil {
			t.Errorf("watch with timeout should return nil: %v", err)
		}
	})

	t.Run("once_exits_after_reload", func(t *testing.T) {
		path := fixture.CreateTempConfig("once.json", `{"value": 1}`)

		done := make(chan error, 1)
		go func() {
			done <- NewManager().Run([]string{"watch", path, "--once", "--timeout", "10s", "--debounce", "20ms"})
		}()

		// Keep writing until the watch has started and picked up a change
		deadline := time.After(5 * time.Second)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for i := 2; ; i++ {
			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("watch --once failed: %v", err)
				}
				return
			case <-ticker.C:
				content := []byte(`{"value": ` + strconv.Itoa(i) + `}`)
				if err := os.WriteFile(path, content, 0644); err != nil {
					t.Fatalf("Failed to write config: %v", err)
				}
			case <-deadline:
				t.Fatal("watch --once did not exit after a reload")
			}
		}
	})

	t.Run("missing_directory", func(t *testing.T) {
		path := filepath.Join(fixture.tempDir, "nope", "config.json")
		err := fixture.RunCLI("watch", path, "--timeout", "50ms")
		if err == nil {
			t.Fatal("watch should fail when the parent directory is missing")
		}
		if !kairos.IsSetupError(err) {
			t.Errorf("Expected a setup error, got: %v", err)
		}
	})

	t.Run("invalid_debounce", func(t *testing.T) {
		path := fixture.CreateTempConfig("debounce.json", `{}`)
		if err := fixture.RunCLI("watch", path, "--debounce", "soon"); err == nil {
			t.Error("watch should reject an invalid debounce")
		}
	})

	t.Run("no_files", func(t *testing.T) {
		if err := fixture.RunCLI("watch"); err == nil {
			t.Error("watch without files should fail")
		}
	})
}

// =============================================================================
// AUDIT
// =============================================================================

func TestCLI_Audit(t *testing.T) {
	fixture := NewCLITestFixture(t)
	auditPath := filepath.Join(fixture.tempDir, "audit.jsonl")

	auditLogger, err := kairos.NewAuditLogger(kairos.AuditConfig{
		Enabled:       true,
		OutputFile:    auditPath,
		MinLevel:      kairos.AuditInfo,
		BufferSize:    10,
		FlushInterval: time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create audit logger: %v", err)
	}
	auditLogger.LogReload("/etc/app/config.json", 2, []string{"/etc/app/config.json"})
	auditLogger.LogDependencyChange([]string{"/etc/app/extra.json"}, nil)
	if err := auditLogger.Close(); err != nil {
		t.Fatalf("Failed to close audit logger: %v", err)
	}

	t.Run("query", func(t *testing.T) {
		if err := fixture.RunCLI("audit", "query", auditPath); err != nil {
			t.Errorf("audit query failed: %v", err)
		}
	})

	t.Run("query_with_filter", func(t *testing.T) {
		if err := fixture.RunCLI("audit", "query", auditPath, "--event", "reload_success", "--limit", "1"); err != nil {
			t.Errorf("audit query with filter failed: %v", err)
		}
	})

	t.Run("stats", func(t *testing.T) {
		if err := fixture.RunCLI("audit", "stats", auditPath); err != nil {
			t.Errorf("audit stats failed: %v", err)
		}
	})

	t.Run("missing_database", func(t *testing.T) {
		if err := fixture.RunCLI("audit", "stats", filepath.Join(fixture.tempDir, "missing.db")); err == nil {
			t.Error("audit stats should fail for a missing database")
		}
	})
}

// =============================================================================
// INFO
// =============================================================================

func TestCLI_Info(t *testing.T) {
	fixture := NewCLITestFixture(t)

	if err := fixture.RunCLI("info"); err != nil {
		t.Errorf("info failed: %v", err)
	}
	if err := fixture.RunCLI("info", "--verbose"); err != nil {
		t.Errorf("info --verbose failed: %v", err)
	}

	t.Setenv("KAIROS_DEBOUNCE", "not-a-duration")
	if err := fixture.RunCLI("info"); err == nil {
		t.Error("info should report an invalid environment configuration")
	}
}

func TestParseTimeout(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"250ms", 250 * time.Millisecond, false},
		{"-1s", 0, true},
		{"later", 0, true},
	}
	for _, tc := range cases {
		got, err := parseTimeout(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseTimeout(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("parseTimeout(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestResolveFormat(t *testing.T) {
	if got := resolveFormat("config.yaml", "auto"); got != kairos.FormatYAML {
		t.Errorf("Expected YAML from extension, got %v", got)
	}
	if got := resolveFormat("config.yaml", "toml"); got != kairos.FormatTOML {
		t.Errorf("Explicit format should win, got %v", got)
	}
	if got := resolveFormat("config", ""); got != kairos.FormatUnknown {
		t.Errorf("Expected Unknown without extension, got %v", got)
	}
}
