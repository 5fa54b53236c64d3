// config.go: Engine configuration for Kairos
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import "time"

// Engine defaults
const (
	DefaultDebounce          = 100 * time.Millisecond
	DefaultMaxWatchedPaths   = 100
	DefaultEventRingCapacity = 256
)

// Config tunes the reload engine of a Watch.
type Config struct {
	// Debounce is the quiet window after the last relevant event before a
	// reload is triggered.
	// Default: 100ms
	Debounce time.Duration

	// DisableDebounce reloads on every relevant event, ignoring Debounce.
	DisableDebounce bool

	// MaxWatchedPaths limits the size of the dependency set
	// Default: 100 (generous for config files)
	MaxWatchedPaths int

	// EventRingCapacity sets the notifier ring size (rounded up to a power of 2).
	// When the ring overflows the engine reloads every dependency.
	// Default: 256
	EventRingCapacity int64

	// Audit configures the audit trail. Disabled unless Enabled is set.
	Audit AuditConfig
}

// WithDefaults applies sensible defaults to the configuration
func (c *Config) WithDefaults() *Config {
	config := *c

	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}

	if config.MaxWatchedPaths <= 0 {
		config.MaxWatchedPaths = DefaultMaxWatchedPaths
	}

	if config.EventRingCapacity <= 0 {
		config.EventRingCapacity = DefaultEventRingCapacity
	}

	// Ensure capacity is power of 2
	if (config.EventRingCapacity & (config.EventRingCapacity - 1)) != 0 {
		capacity := int64(1)
		for capacity < config.EventRingCapacity {
			capacity <<= 1
		}
		config.EventRingCapacity = capacity
	}

	if config.Audit.Enabled {
		if config.Audit.BufferSize <= 0 {
			config.Audit.BufferSize = DefaultAuditConfig().BufferSize
		}
		if config.Audit.FlushInterval <= 0 {
			config.Audit.FlushInterval = DefaultAuditConfig().FlushInterval
		}
	}

	return &config
}

// window returns the effective debounce window.
func (c *Config) window() time.Duration {
	if c.DisableDebounce {
		return 0
	}
	return c.Debounce
}
