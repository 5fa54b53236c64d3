// Command handlers for the Kairos CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/kairos"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// handleWatch builds a Watch over the given files and prints each snapshot
// until Ctrl+C, --timeout, or the first reload when --once is set.
func (m *Manager) handleWatch(ctx *orpheus.Context) error {
	files := collectArgs(ctx)
	if len(files) == 0 {
		return errors.New(kairos.ErrCodeInvalidConfig, "watch requires at least one file")
	}

	cfg, err := kairos.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	if debounceStr := ctx.GetFlagString("debounce"); debounceStr != "" {
		debounce, err := time.ParseDuration(debounceStr)
		if err != nil {
			return errors.New(kairos.ErrCodeInvalidDebounce, fmt.Sprintf("invalid debounce: %v", err))
		}
		if debounce == 0 {
			cfg.DisableDebounce = true
		} else {
			cfg.Debounce = debounce
		}
	}

	timeout, err := parseTimeout(ctx.GetFlagString("timeout"))
	if err != nil {
		return err
	}

	format := resolveFormat(files[0], ctx.GetFlagString("format"))
	once := ctx.GetFlagBool("once")
	verbose := ctx.GetFlagBool("verbose")

	if m.auditLogger != nil {
		for _, file := range files {
			m.auditLogger.LogFileWatch("cli_watch", file)
		}
	}

	updates := make(chan uint64, 1)
	w, err := kairos.Build(kairos.Options[map[string]interface{}]{
		Config: *cfg,
		Files:  files,
		Loader: kairos.LoadFile[map[string]interface{}](format, nil),
		AfterUpdate: func(c *kairos.Context, snapshot map[string]interface{}) {
			printSnapshot(c.PrimaryPath(), snapshot)
			if verbose && len(c.ModifiedPaths()) > 0 {
				fmt.Printf("  modified: %s\n", strings.Join(c.ModifiedPaths(), ", "))
			}
			select {
			case updates <- 0:
			default:
			}
		},
		OnError: func(c *kairos.Context, err error) {
			fmt.Fprintf(os.Stderr, "Reload of %s failed: %v\n", c.PrimaryPath(), err)
		},
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	// The initial load already printed
	select {
	case <-updates:
	default:
	}

	fmt.Printf("Watching %s (debounce: %v)\n", strings.Join(w.Paths(), ", "), effectiveDebounce(cfg))
	if !once && timeout == 0 {
		fmt.Println("Press Ctrl+C to stop...")
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-updates:
			if once {
				return m.finishWatch(w, verbose)
			}
		case <-deadline:
			if once {
				return m.finishWatch(w, verbose, errors.New(kairos.ErrCodeWatchClosed, "no reload before timeout"))
			}
			return m.finishWatch(w, verbose)
		case <-sigCtx.Done():
			return m.finishWatch(w, verbose)
		case <-w.Done():
			return m.finishWatch(w, verbose, errors.New(kairos.ErrCodeWatchClosed, "watch stopped unexpectedly"))
		}
	}
}

// finishWatch closes w, optionally prints its stats, and returns the first
// non-nil error among errs and the close error.
func (m *Manager) finishWatch(w *kairos.Watch[map[string]interface{}], verbose bool, errs ...error) error {
	closeErr := w.Close()
	if verbose {
		printStats(w.Stats())
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return closeErr
}

// handleValidate parses a file once and reports the detected format.
func (m *Manager) handleValidate(ctx *orpheus.Context) error {
	filePath := ctx.GetArg(0)
	if filePath == "" {
		return errors.New(kairos.ErrCodeInvalidConfig, "validate requires a file")
	}

	if m.auditLogger != nil {
		m.auditLogger.LogFileWatch("cli_validate", filePath)
	}

	format := resolveFormat(filePath, ctx.GetFlagString("format"))
	config, err := loadConfig(filePath, format)
	if err != nil {
		fmt.Printf("Invalid %s configuration: %v\n", format.String(), err)
		return err
	}
	fmt.Printf("Valid %s configuration: %s (%d top-level keys)\n", format.String(), filePath, len(config))

	if ctx.GetFlagBool("env") {
		if err := kairos.ValidateEnvironmentConfig(); err != nil {
			fmt.Printf("Invalid environment configuration: %v\n", err)
			return err
		}
		fmt.Println("Environment configuration is valid")
	}
	return nil
}

// handleAuditQuery prints events from an audit store.
func (m *Manager) handleAuditQuery(ctx *orpheus.Context) error {
	path := ctx.GetArg(0)
	events, err := kairos.QueryAuditEvents(path, ctx.GetFlagInt("limit"), ctx.GetFlagString("event"))
	if err != nil {
		return errors.Wrap(err, kairos.ErrCodeInvalidAuditConfig, "failed to query audit trail: "+err.Error())
	}

	if len(events) == 0 {
		fmt.Println("No audit events found")
		return nil
	}

	for _, event := range events {
		fmt.Println(formatAuditEvent(event))
	}
	fmt.Printf("%d event(s)\n", len(events))
	return nil
}

// handleAuditStats prints a summary of an audit store.
func (m *Manager) handleAuditStats(ctx *orpheus.Context) error {
	path := ctx.GetArg(0)
	stats, err := kairos.ReadAuditStats(path)
	if err != nil {
		return errors.Wrap(err, kairos.ErrCodeInvalidAuditConfig, "failed to read audit stats: "+err.Error())
	}

	fmt.Printf("Total events: %d\n", stats.TotalEvents)
	if stats.OldestEvent != nil && stats.NewestEvent != nil {
		fmt.Printf("Range: %s .. %s\n",
			stats.OldestEvent.Format(time.RFC3339), stats.NewestEvent.Format(time.RFC3339))
	}
	if stats.SchemaVersion > 0 {
		fmt.Printf("Schema version: %d\n", stats.SchemaVersion)
	}
	fmt.Printf("Size: %d bytes\n", stats.DatabaseSize)

	printCounts("By level", stats.EventsByLevel)
	printCounts("By event", stats.EventsByName)
	return nil
}

// handleInfo prints the version and the effective configuration.
func (m *Manager) handleInfo(ctx *orpheus.Context) error {
	verbose := ctx.GetFlagBool("verbose")

	fmt.Printf("Kairos Hot-Reload Engine\n")
	fmt.Printf("Version: %s\n", Version)
	fmt.Printf("Supported formats: JSON, YAML, TOML, HCL, INI, Properties\n")

	cfg, err := kairos.LoadConfigFromEnv()
	if err != nil {
		fmt.Printf("Environment configuration: %v\n", err)
		return err
	}

	fmt.Printf("\nEffective configuration:\n")
	fmt.Printf("  Debounce: %v\n", effectiveDebounce(cfg))
	fmt.Printf("  Max watched paths: %d\n", cfg.MaxWatchedPaths)
	fmt.Printf("  Event ring capacity: %d\n", cfg.EventRingCapacity)
	fmt.Printf("  Audit: %v\n", cfg.Audit.Enabled)
	if cfg.Audit.Enabled {
		fmt.Printf("  Audit output: %s\n", orDefault(cfg.Audit.OutputFile, "shared database"))
		fmt.Printf("  Audit min level: %s\n", cfg.Audit.MinLevel)
	}
	fmt.Printf("  CLI audit: %v\n", m.auditLogger != nil)

	if verbose {
		result := cfg.ValidateDetailed()
		fmt.Printf("\n%s\n", result)
		for _, warning := range result.Warnings {
			fmt.Printf("  warning: %s\n", warning)
		}
	}
	return nil
}
