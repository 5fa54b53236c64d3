// audit.go: Audit trail of reload activity for Kairos
//
// Every publish, failure, dependency change and isolated panic can be
// recorded with a tamper-detection checksum, so operators can reconstruct
// which configuration was live at any point in time.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// auditComponent tags every event written by the engine.
const auditComponent = "kairos"

// AuditLevel represents the severity of audit events
type AuditLevel int

const (
	AuditInfo AuditLevel = iota
	AuditWarn
	AuditCritical
	AuditSecurity
)

func (al AuditLevel) String() string {
	switch al {
	case AuditInfo:
		return "INFO"
	case AuditWarn:
		return "WARN"
	case AuditCritical:
		return "CRITICAL"
	case AuditSecurity:
		return "SECURITY"
	default:
		return "UNKNOWN"
	}
}

// parseAuditLevel maps a level name back to its AuditLevel.
func parseAuditLevel(s string) (AuditLevel, bool) {
	switch s {
	case "info", "INFO":
		return AuditInfo, true
	case "warn", "WARN", "warning", "WARNING":
		return AuditWarn, true
	case "critical", "CRITICAL":
		return AuditCritical, true
	case "security", "SECURITY":
		return AuditSecurity, true
	default:
		return AuditInfo, false
	}
}

// AuditEvent represents a single auditable event
type AuditEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	Level       AuditLevel             `json:"level"`
	Event       string                 `json:"event"`
	Component   string                 `json:"component"`
	FilePath    string                 `json:"file_path,omitempty"`
	OldValue    interface{}            `json:"old_value,omitempty"`
	NewValue    interface{}            `json:"new_value,omitempty"`
	ProcessID   int                    `json:"process_id"`
	ProcessName string                 `json:"process_name"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Checksum    string                 `json:"checksum"`
}

// AuditConfig configures the audit system
type AuditConfig struct {
	Enabled       bool          `json:"enabled"`
	OutputFile    string        `json:"output_file"`
	MinLevel      AuditLevel    `json:"min_level"`
	BufferSize    int           `json:"buffer_size"`
	FlushInterval time.Duration `json:"flush_interval"`
}

// DefaultAuditConfig returns the audit settings used when auditing is
// switched on without further tuning. An empty OutputFile selects the
// shared SQLite database.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:       true,
		OutputFile:    "",
		MinLevel:      AuditInfo,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	}
}

// AuditLogger buffers audit events and writes them to a SQLite or JSONL
// backend. A nil *AuditLogger is valid and discards everything.
type AuditLogger struct {
	config      AuditConfig
	backend     auditBackend
	buffer      []AuditEvent
	bufferMu    sync.Mutex
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
	processID   int
	processName string
}

// NewAuditLogger creates a logger for config. A disabled config yields a
// logger without backend that drops every event.
func NewAuditLogger(config AuditConfig) (*AuditLogger, error) {
	logger := &AuditLogger{
		config:      config,
		stopCh:      make(chan struct{}),
		processID:   os.Getpid(),
		processName: getProcessName(),
	}

	if !config.Enabled {
		return logger, nil
	}

	backend, err := createAuditBackend(config)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidAuditConfig, "failed to initialize audit backend").
			WithContext("output_file", config.OutputFile)
	}
	logger.backend = backend
	logger.buffer = make([]AuditEvent, 0, max(config.BufferSize, 1))

	if config.FlushInterval > 0 {
		logger.flushTicker = time.NewTicker(config.FlushInterval)
		go logger.flushLoop()
	}

	return logger, nil
}

// Log records an audit event
func (al *AuditLogger) Log(level AuditLevel, event, component, filePath string, oldVal, newVal interface{}, context map[string]interface{}) {
	if al == nil || al.backend == nil || !al.config.Enabled || level < al.config.MinLevel {
		return
	}

	auditEvent := AuditEvent{
		Timestamp:   timecache.CachedTime(),
		Level:       level,
		Event:       event,
		Component:   component,
		FilePath:    filePath,
		OldValue:    oldVal,
		NewValue:    newVal,
		ProcessID:   al.processID,
		ProcessName: al.processName,
		Context:     context,
	}
	auditEvent.Checksum = generateChecksum(auditEvent)

	al.bufferMu.Lock()
	al.buffer = append(al.buffer, auditEvent)
	if len(al.buffer) >= al.config.BufferSize {
		_ = al.flushBufferUnsafe()
	}
	al.bufferMu.Unlock()
}

// LogReload records a published value together with its generation.
func (al *AuditLogger) LogReload(filePath string, generation uint64, modified []string) {
	al.Log(AuditInfo, "reload_success", auditComponent, filePath, nil, nil, map[string]interface{}{
		"generation": generation,
		"modified":   modified,
	})
}

// LogReloadError records a failed load.
func (al *AuditLogger) LogReloadError(filePath string, err error) {
	al.Log(AuditWarn, "reload_error", auditComponent, filePath, nil, nil, map[string]interface{}{
		"error": err.Error(),
		"code":  errorCode(err),
	})
}

// LogDependencyChange records paths entering or leaving the dependency set.
func (al *AuditLogger) LogDependencyChange(added, removed []string) {
	for _, p := range added {
		al.Log(AuditInfo, "dependency_added", auditComponent, p, nil, nil, nil)
	}
	for _, p := range removed {
		al.Log(AuditInfo, "dependency_removed", auditComponent, p, nil, nil, nil)
	}
}

// LogFileWatch logs watch lifecycle events
func (al *AuditLogger) LogFileWatch(event, filePath string) {
	al.Log(AuditInfo, event, auditComponent, filePath, nil, nil, nil)
}

// LogSecurityEvent logs security-related events such as isolated panics
func (al *AuditLogger) LogSecurityEvent(event, details string, context map[string]interface{}) {
	if context == nil {
		context = map[string]interface{}{}
	}
	context["details"] = details
	al.Log(AuditSecurity, event, auditComponent, "", nil, nil, context)
}

// Flush immediately writes all buffered events
func (al *AuditLogger) Flush() error {
	if al == nil || al.backend == nil {
		return nil
	}
	al.bufferMu.Lock()
	defer al.bufferMu.Unlock()
	if err := al.flushBufferUnsafe(); err != nil {
		return err
	}
	return al.backend.Flush()
}

// Stats returns backend statistics.
func (al *AuditLogger) Stats() (*AuditDatabaseStats, error) {
	if al == nil || al.backend == nil {
		return nil, errors.New(ErrCodeInvalidAuditConfig, "audit logging is disabled")
	}
	if err := al.Flush(); err != nil {
		return nil, err
	}
	return al.backend.GetStats()
}

// Close flushes pending events and releases the backend. Close is idempotent.
func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}

	var err error
	al.closeOnce.Do(func() {
		close(al.stopCh)
		if al.flushTicker != nil {
			al.flushTicker.Stop()
		}
		if al.backend == nil {
			return
		}

		al.bufferMu.Lock()
		flushErr := al.flushBufferUnsafe()
		al.bufferMu.Unlock()

		closeErr := al.backend.Close()
		switch {
		case flushErr != nil:
			err = fmt.Errorf("failed to flush audit logger during close: %w", flushErr)
		case closeErr != nil:
			err = fmt.Errorf("failed to close audit backend: %w", closeErr)
		}
	})
	return err
}

func (al *AuditLogger) flushLoop() {
	for {
		select {
		case <-al.flushTicker.C:
			_ = al.Flush()
		case <-al.stopCh:
			return
		}
	}
}

// flushBufferUnsafe writes the buffer to the backend (caller holds bufferMu)
func (al *AuditLogger) flushBufferUnsafe() error {
	if len(al.buffer) == 0 {
		return nil
	}

	if err := al.backend.Write(al.buffer); err != nil {
		return fmt.Errorf("failed to write audit events to backend: %w", err)
	}

	al.buffer = al.buffer[:0]
	return nil
}

// generateChecksum creates a tamper-detection checksum using SHA-256
func generateChecksum(event AuditEvent) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%v:%v:%v",
		event.Timestamp.Format(time.RFC3339Nano),
		event.Event, event.Component, event.FilePath,
		event.OldValue, event.NewValue, event.Context)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// VerifyChecksum reports whether event still matches its checksum.
func VerifyChecksum(event AuditEvent) bool {
	return event.Checksum == generateChecksum(event)
}

func getProcessName() string {
	if len(os.Args) > 0 && os.Args[0] != "" {
		return filepath.Base(os.Args[0])
	}
	return auditComponent
}
