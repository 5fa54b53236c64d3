// flags.go: Command-line configuration for Kairos via FlashFlags
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"strings"

	flashflags "github.com/agilira/flash-flags"
	"github.com/agilira/go-errors"
)

// ErrHelpRequested is returned by ConfigFromFlags when -h or --help is given.
var ErrHelpRequested = errors.New(ErrCodeInvalidConfig, "help requested")

// NewConfigFlagSet returns a FlashFlags set carrying the engine flags.
// Flag defaults are taken from base, so flags override whatever base holds.
func NewConfigFlagSet(name string, base *Config) *flashflags.FlagSet {
	if base == nil {
		base = (&Config{}).WithDefaults()
	}

	fs := flashflags.New(name)
	fs.SetDescription("Hot-reloadable configuration engine")
	fs.SetEnvPrefix(strings.ToUpper(name))

	fs.Duration("debounce", base.Debounce, "Quiet window before a reload")
	fs.Bool("no-debounce", base.DisableDebounce, "Reload on every relevant event")
	fs.Int("max-watched-paths", base.MaxWatchedPaths, "Maximum size of the dependency set")
	fs.Int("event-ring-capacity", int(base.EventRingCapacity), "Notifier ring capacity (power of 2)")
	fs.Bool("audit", base.Audit.Enabled, "Enable the audit trail")
	fs.String("audit-file", base.Audit.OutputFile, "Audit output file (.jsonl or SQLite)")
	fs.String("audit-level", base.Audit.MinLevel.String(), "Minimum audit level (info, warn, critical, security)")
	return fs
}

// ConfigFromFlags builds a Config with precedence flags > KAIROS_* environment
// variables > defaults. The result has been validated.
func ConfigFromFlags(args []string) (*Config, error) {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return nil, ErrHelpRequested
		}
	}

	base, err := LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	fs := NewConfigFlagSet("kairos", base)
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse command-line flags: "+err.Error())
	}

	return configFromFlagSet(fs)
}

// configFromFlagSet reads the engine flags registered by NewConfigFlagSet.
func configFromFlagSet(fs *flashflags.FlagSet) (*Config, error) {
	cfg := &Config{
		Debounce:          fs.GetDuration("debounce"),
		DisableDebounce:   fs.GetBool("no-debounce"),
		MaxWatchedPaths:   fs.GetInt("max-watched-paths"),
		EventRingCapacity: int64(fs.GetInt("event-ring-capacity")),
	}

	cfg.Audit.Enabled = fs.GetBool("audit")
	cfg.Audit.OutputFile = fs.GetString("audit-file")
	if levelName := fs.GetString("audit-level"); levelName != "" {
		level, ok := parseAuditLevel(strings.ToLower(levelName))
		if !ok {
			return nil, errors.New(ErrCodeInvalidAuditConfig, "invalid audit level: "+levelName)
		}
		cfg.Audit.MinLevel = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg.WithDefaults(), nil
}

// FlagNames lists the flags registered by NewConfigFlagSet.
func FlagNames(fs *flashflags.FlagSet) []string {
	var names []string
	fs.VisitAll(func(flag *flashflags.Flag) {
		names = append(names, flag.Name())
	})
	return names
}
