// audit_backend.go: SQLite and JSONL storage for the Kairos audit trail
//
// Paths ending in .jsonl select the JSONL backend. Anything else goes to
// SQLite (the given .db file, or the shared database under the temp dir)
// and falls back to JSONL when SQLite cannot be opened.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

const auditSchemaVersion = 1

// auditBackend persists batches of audit events.
type auditBackend interface {
	Write(events []AuditEvent) error
	Flush() error
	Close() error
	GetStats() (*AuditDatabaseStats, error)
}

// AuditDatabaseStats summarizes an audit store.
type AuditDatabaseStats struct {
	TotalEvents   int64            `json:"total_events"`
	EventsByLevel map[string]int64 `json:"events_by_level"`
	EventsByName  map[string]int64 `json:"events_by_name"`
	OldestEvent   *time.Time       `json:"oldest_event"`
	NewestEvent   *time.Time       `json:"newest_event"`
	DatabaseSize  int64            `json:"database_size_bytes"`
	SchemaVersion int              `json:"schema_version"`
}

func newAuditDatabaseStats() *AuditDatabaseStats {
	return &AuditDatabaseStats{
		EventsByLevel: make(map[string]int64),
		EventsByName:  make(map[string]int64),
	}
}

func createAuditBackend(config AuditConfig) (auditBackend, error) {
	if isJSONLPath(config.OutputFile) {
		return newJSONLBackend(config.OutputFile)
	}

	backend, err := newSQLiteBackend(config)
	if err == nil {
		return backend, nil
	}

	if config.OutputFile == "" {
		return nil, err
	}

	jsonlBackend, jsonlErr := newJSONLBackend(strings.TrimSuffix(config.OutputFile, filepath.Ext(config.OutputFile)) + ".jsonl")
	if jsonlErr != nil {
		return nil, fmt.Errorf("all audit backends failed - SQLite: %w, JSONL: %v", err, jsonlErr)
	}
	return jsonlBackend, nil
}

func isJSONLPath(path string) bool {
	return path != "" && filepath.Ext(path) == ".jsonl"
}

// unifiedAuditPath is the shared database used when no OutputFile is set.
func unifiedAuditPath() string {
	return filepath.Join(os.TempDir(), "kairos", "audit.db")
}

// =============================================================================
// SQLITE BACKEND
// =============================================================================

type sqliteAuditBackend struct {
	db         *sql.DB
	dbPath     string
	insertStmt *sql.Stmt
	mu         sync.RWMutex
	closed     bool
}

func newSQLiteBackend(config AuditConfig) (*sqliteAuditBackend, error) {
	dbPath := config.OutputFile
	if dbPath == "" {
		dbPath = unifiedAuditPath()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit database directory: %w", err)
	}

	db, err := openSQLiteDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	backend := &sqliteAuditBackend{db: db, dbPath: dbPath}

	if err := backend.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize audit database schema: %w", err)
	}

	stmt, err := db.Prepare(`
	INSERT INTO audit_events (
		timestamp, level, event, component, file_path,
		old_value, new_value, process_id, process_name, context, checksum
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	backend.insertStmt = stmt

	return backend, nil
}

func openSQLiteDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=1000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// Writers serialize on one connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database (close error: %v): %w", closeErr, err)
		}
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	return db, nil
}

// ensureSchema creates the tables and records the schema version.
func (s *sqliteAuditBackend) ensureSchema() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS schema_info (
			version INTEGER PRIMARY KEY,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			level TEXT NOT NULL,
			event TEXT NOT NULL,
			component TEXT NOT NULL,
			file_path TEXT,
			old_value TEXT,
			new_value TEXT,
			process_id INTEGER NOT NULL,
			process_name TEXT NOT NULL,
			context TEXT,
			checksum TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		"CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_audit_event ON audit_events(event, timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_audit_file ON audit_events(file_path)",
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO schema_info (version, updated_at) VALUES (?, CURRENT_TIMESTAMP)", auditSchemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	return tx.Commit()
}

func (s *sqliteAuditBackend) Write(events []AuditEvent) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("cannot write to closed SQLite audit backend")
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				fmt.Fprintf(os.Stderr, "Failed to rollback audit transaction: %v\n", rollbackErr)
			}
		}
	}()

	txStmt := tx.Stmt(s.insertStmt)
	defer func() { _ = txStmt.Close() }()

	for _, event := range events {
		if err = insertAuditEvent(txStmt, event); err != nil {
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit transaction: %w", err)
	}
	return nil
}

func insertAuditEvent(stmt *sql.Stmt, event AuditEvent) error {
	oldValue, err := marshalOptional(event.OldValue)
	if err != nil {
		return fmt.Errorf("failed to serialize old_value: %w", err)
	}
	newValue, err := marshalOptional(event.NewValue)
	if err != nil {
		return fmt.Errorf("failed to serialize new_value: %w", err)
	}
	var context string
	if event.Context != nil {
		if context, err = marshalOptional(event.Context); err != nil {
			return fmt.Errorf("failed to serialize context: %w", err)
		}
	}

	_, err = stmt.Exec(
		event.Timestamp.Format(time.RFC3339Nano),
		event.Level.String(),
		event.Event,
		event.Component,
		event.FilePath,
		oldValue,
		newValue,
		event.ProcessID,
		event.ProcessName,
		context,
		event.Checksum,
	)
	return err
}

func marshalOptional(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Flush forces a WAL checkpoint.
func (s *sqliteAuditBackend) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to flush SQLite audit backend: %w", err)
	}
	return nil
}

func (s *sqliteAuditBackend) GetStats() (*AuditDatabaseStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("cannot read stats from closed SQLite audit backend")
	}
	return sqliteStats(s.db, s.dbPath)
}

func (s *sqliteAuditBackend) Close() error {
	if err := s.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to flush audit backend during close: %v\n", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []string
	if s.insertStmt != nil {
		if err := s.insertStmt.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("insert statement: %v", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Sprintf("database: %v", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing SQLite audit backend: %s", strings.Join(errs, "; "))
	}
	return nil
}

func sqliteStats(db *sql.DB, dbPath string) (*AuditDatabaseStats, error) {
	stats := newAuditDatabaseStats()

	if err := db.QueryRow("SELECT COUNT(*) FROM audit_events").Scan(&stats.TotalEvents); err != nil {
		return nil, fmt.Errorf("failed to get total events count: %w", err)
	}

	groups := []struct {
		query  string
		target map[string]int64
	}{
		{"SELECT level, COUNT(*) FROM audit_events GROUP BY level", stats.EventsByLevel},
		{"SELECT event, COUNT(*) FROM audit_events GROUP BY event", stats.EventsByName},
	}
	for _, g := range groups {
		if err := scanCounts(db, g.query, g.target); err != nil {
			return nil, err
		}
	}

	var oldest, newest sql.NullString
	if err := db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM audit_events").Scan(&oldest, &newest); err != nil {
		return nil, fmt.Errorf("failed to get event time range: %w", err)
	}
	stats.OldestEvent = parseOptionalTime(oldest)
	stats.NewestEvent = parseOptionalTime(newest)

	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_info").Scan(&stats.SchemaVersion); err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}

	if info, err := os.Stat(dbPath); err == nil {
		stats.DatabaseSize = info.Size()
	}

	return stats, nil
}

func scanCounts(db *sql.DB, query string, target map[string]int64) error {
	rows, err := db.Query(query)
	if err != nil {
		return fmt.Errorf("failed to group audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan audit group: %w", err)
		}
		target[key] = count
	}
	return rows.Err()
}

func parseOptionalTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// =============================================================================
// JSONL BACKEND
// =============================================================================

type jsonlAuditBackend struct {
	file   *os.File
	path   string
	mu     sync.Mutex
	closed bool
}

func newJSONLBackend(path string) (*jsonlAuditBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("JSONL backend requires OutputFile to be specified")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create JSONL audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 -- operator-provided audit path
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL audit log file: %w", err)
	}

	return &jsonlAuditBackend{file: file, path: path}, nil
}

func (j *jsonlAuditBackend) Write(events []AuditEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return fmt.Errorf("cannot write to closed JSONL audit backend")
	}

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to serialize audit event: %w", err)
		}
		if _, err := j.file.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write audit event to JSONL: %w", err)
		}
	}
	return nil
}

func (j *jsonlAuditBackend) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync JSONL audit file: %w", err)
	}
	return nil
}

func (j *jsonlAuditBackend) GetStats() (*AuditDatabaseStats, error) {
	return jsonlStats(j.path)
}

func (j *jsonlAuditBackend) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}

func jsonlStats(path string) (*AuditDatabaseStats, error) {
	events, err := readJSONLEvents(path, 0, "")
	if err != nil {
		return nil, err
	}

	stats := newAuditDatabaseStats()
	stats.SchemaVersion = auditSchemaVersion
	for i := range events {
		e := &events[i]
		stats.TotalEvents++
		stats.EventsByLevel[e.Level.String()]++
		stats.EventsByName[e.Event]++
		if stats.OldestEvent == nil || e.Timestamp.Before(*stats.OldestEvent) {
			stats.OldestEvent = &e.Timestamp
		}
		if stats.NewestEvent == nil || e.Timestamp.After(*stats.NewestEvent) {
			stats.NewestEvent = &e.Timestamp
		}
	}
	if info, err := os.Stat(path); err == nil {
		stats.DatabaseSize = info.Size()
	}
	return stats, nil
}

// =============================================================================
// READ SIDE
// =============================================================================

// QueryAuditEvents returns the most recent events stored at path, newest
// last. limit <= 0 means no limit; a non-empty event filters by event name.
// An empty path reads the shared database.
func QueryAuditEvents(path string, limit int, event string) ([]AuditEvent, error) {
	if path == "" {
		path = unifiedAuditPath()
	}
	if isJSONLPath(path) {
		return readJSONLEvents(path, limit, event)
	}

	db, err := openAuditDatabaseReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	query := "SELECT timestamp, level, event, component, COALESCE(file_path, ''), process_id, process_name, COALESCE(context, ''), COALESCE(checksum, '') FROM audit_events"
	var args []interface{}
	if event != "" {
		query += " WHERE event = ?"
		args = append(args, event)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var ts, level, context string
		if err := rows.Scan(&ts, &level, &e.Event, &e.Component, &e.FilePath, &e.ProcessID, &e.ProcessName, &context, &e.Checksum); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = t
		}
		e.Level, _ = parseAuditLevel(level)
		if context != "" {
			_ = json.Unmarshal([]byte(context), &e.Context)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows come newest first
	for i, k := 0, len(events)-1; i < k; i, k = i+1, k-1 {
		events[i], events[k] = events[k], events[i]
	}
	return events, nil
}

// ReadAuditStats summarizes the audit store at path.
func ReadAuditStats(path string) (*AuditDatabaseStats, error) {
	if path == "" {
		path = unifiedAuditPath()
	}
	if isJSONLPath(path) {
		return jsonlStats(path)
	}

	db, err := openAuditDatabaseReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	return sqliteStats(db, path)
}

func openAuditDatabaseReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audit database not found: %w", err)
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}
	return db, nil
}

func readJSONLEvents(path string, limit int, event string) ([]AuditEvent, error) {
	file, err := os.Open(path) // #nosec G304 -- operator-provided audit path
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL audit log: %w", err)
	}
	defer func() { _ = file.Close() }()

	var events []AuditEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e AuditEvent
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("failed to decode audit event: %w", err)
		}
		if event != "" && e.Event != event {
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSONL audit log: %w", err)
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}
