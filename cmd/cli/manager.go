// Package cli provides the command-line interface for Kairos.
//
// The CLI is built on the Orpheus framework and exposes the reload engine
// for interactive use: watch files and print every published snapshot,
// validate a file once, inspect the audit trail.
//
// Architecture:
// - Manager: command registration and routing
// - Handlers: one function per command
// - Utils: format resolution, snapshot printing, argument helpers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"github.com/agilira/kairos"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// Version is the CLI version reported by info and --version.
const Version = "0.3.0"

// Manager wires the Kairos commands into an Orpheus application.
type Manager struct {
	app         *orpheus.App
	auditLogger *kairos.AuditLogger // Optional audit integration
}

// NewManager creates a CLI manager with every command registered.
func NewManager() *Manager {
	manager := &Manager{}
	manager.buildApp()
	return manager
}

// buildApp registers every command on a fresh Orpheus application.
func (m *Manager) buildApp() {
	m.app = orpheus.New("kairos").
		SetDescription("Hot-reloadable configuration with debounced file watching").
		SetVersion(Version)

	m.setupWatchCommands()
	m.setupValidateCommands()
	m.setupAuditCommands()
	m.setupUtilityCommands()
}

// WithAudit records CLI operations in the given audit trail.
func (m *Manager) WithAudit(auditLogger *kairos.AuditLogger) *Manager {
	m.auditLogger = auditLogger
	return m
}

// Run executes the CLI with args, excluding the program name.
// Flag values do not carry over from a previous Run.
func (m *Manager) Run(args []string) error {
	m.buildApp()
	return m.app.Run(args)
}

// setupWatchCommands registers 'watch <file...>'.
func (m *Manager) setupWatchCommands() {
	watchCmd := orpheus.NewCommand("watch", "Hot-reload files and print every published snapshot")

	watchCmd.SetHandler(m.handleWatch)
	watchCmd.AddFlag("debounce", "d", "", "Quiet window before a reload (default from KAIROS_DEBOUNCE or 100ms)")
	watchCmd.AddFlag("format", "f", "auto", "File format (auto|json|yaml|toml|hcl|ini|properties)")
	watchCmd.AddFlag("timeout", "t", "0", "Stop after this long (0 waits for Ctrl+C)")
	watchCmd.AddBoolFlag("once", "o", false, "Exit after the first reload following the initial load")
	watchCmd.AddBoolFlag("verbose", "v", false, "Print modified paths and engine stats")

	m.app.AddCommand(watchCmd)
}

// setupValidateCommands registers 'validate <file>'.
func (m *Manager) setupValidateCommands() {
	validateCmd := orpheus.NewCommand("validate", "Parse a configuration file once")
	validateCmd.SetHandler(m.handleValidate)
	validateCmd.AddFlag("format", "f", "auto", "File format (auto|json|yaml|toml|hcl|ini|properties)")
	validateCmd.AddBoolFlag("env", "e", false, "Also validate KAIROS_* environment configuration")

	m.app.AddCommand(validateCmd)
}

// setupAuditCommands registers the 'audit' command group.
func (m *Manager) setupAuditCommands() {
	auditCmd := orpheus.NewCommand("audit", "Audit trail inspection")

	queryCmd := auditCmd.Subcommand("query", "Print audit events", m.handleAuditQuery)
	queryCmd.AddFlag("event", "e", "", "Event name filter")
	queryCmd.AddIntFlag("limit", "l", 50, "Maximum results (0 for all)")

	auditCmd.Subcommand("stats", "Print audit statistics", m.handleAuditStats)

	m.app.AddCommand(auditCmd)
}

// setupUtilityCommands registers 'info'.
func (m *Manager) setupUtilityCommands() {
	infoCmd := orpheus.NewCommand("info", "Version and effective configuration")
	infoCmd.SetHandler(m.handleInfo)
	infoCmd.AddBoolFlag("verbose", "v", false, "Show validation warnings")
	m.app.AddCommand(infoCmd)
}
