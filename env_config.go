// env_config.go: Environment variable support for Kairos configuration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// EnvConfig represents configuration loaded from environment variables
type EnvConfig struct {
	// Engine Configuration
	Debounce          time.Duration `env:"KAIROS_DEBOUNCE"`
	DisableDebounce   bool          `env:"KAIROS_DISABLE_DEBOUNCE"`
	MaxWatchedPaths   int           `env:"KAIROS_MAX_WATCHED_PATHS"`
	EventRingCapacity int64         `env:"KAIROS_EVENT_RING_CAPACITY"`

	// Audit Configuration
	AuditEnabled       bool          `env:"KAIROS_AUDIT_ENABLED"`
	AuditOutputFile    string        `env:"KAIROS_AUDIT_OUTPUT_FILE"`
	AuditMinLevel      string        `env:"KAIROS_AUDIT_MIN_LEVEL"`
	AuditBufferSize    int           `env:"KAIROS_AUDIT_BUFFER_SIZE"`
	AuditFlushInterval time.Duration `env:"KAIROS_AUDIT_FLUSH_INTERVAL"`
}

// LoadConfigFromEnv loads Kairos configuration from environment variables.
// Unset variables fall back to the defaults.
func LoadConfigFromEnv() (*Config, error) {
	envConfig := &EnvConfig{}
	if err := loadEnvVars(envConfig); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to load environment configuration: "+err.Error())
	}

	config := &Config{}
	if err := convertEnvToConfig(envConfig, config); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to convert environment configuration: "+err.Error())
	}

	return config.WithDefaults(), nil
}

// LoadConfigMultiSource layers configuration with precedence:
// 1. Environment variables (highest priority)
// 2. The base configuration supplied by the caller
// 3. Default values (lowest priority)
func LoadConfigMultiSource(base *Config) (*Config, error) {
	config := &Config{}
	if base != nil {
		config = base.WithDefaults()
	} else {
		config = config.WithDefaults()
	}

	envConfig := &EnvConfig{}
	if err := loadEnvVars(envConfig); err != nil {
		return config, errors.Wrap(err, ErrCodeInvalidConfig, "failed to load environment configuration: "+err.Error())
	}
	if err := convertEnvToConfig(envConfig, config); err != nil {
		return config, errors.Wrap(err, ErrCodeInvalidConfig, "failed to merge configurations: "+err.Error())
	}

	return config.WithDefaults(), nil
}

// loadEnvVars loads environment variables into the EnvConfig struct
func loadEnvVars(envConfig *EnvConfig) error {
	if err := loadEngineConfig(envConfig); err != nil {
		return err
	}
	return loadAuditConfig(envConfig)
}

func loadEngineConfig(envConfig *EnvConfig) error {
	if debounceStr := os.Getenv("KAIROS_DEBOUNCE"); debounceStr != "" {
		duration, err := time.ParseDuration(debounceStr)
		if err != nil || duration < 0 {
			return errors.New(ErrCodeInvalidDebounce, "invalid KAIROS_DEBOUNCE format")
		}
		envConfig.Debounce = duration
	}

	if disableStr := os.Getenv("KAIROS_DISABLE_DEBOUNCE"); disableStr != "" {
		envConfig.DisableDebounce = parseBool(disableStr)
	}

	if maxStr := os.Getenv("KAIROS_MAX_WATCHED_PATHS"); maxStr != "" {
		maxPaths, err := strconv.Atoi(maxStr)
		if err != nil || maxPaths <= 0 {
			return errors.New(ErrCodeInvalidMaxPaths, "invalid KAIROS_MAX_WATCHED_PATHS value")
		}
		envConfig.MaxWatchedPaths = maxPaths
	}

	if capacityStr := os.Getenv("KAIROS_EVENT_RING_CAPACITY"); capacityStr != "" {
		capacity, err := strconv.ParseInt(capacityStr, 10, 64)
		if err != nil || capacity <= 0 {
			return errors.New(ErrCodeInvalidRing, "invalid KAIROS_EVENT_RING_CAPACITY value")
		}
		envConfig.EventRingCapacity = capacity
	}
	return nil
}

func loadAuditConfig(envConfig *EnvConfig) error {
	if auditStr := os.Getenv("KAIROS_AUDIT_ENABLED"); auditStr != "" {
		envConfig.AuditEnabled = parseBool(auditStr)
	}

	envConfig.AuditOutputFile = os.Getenv("KAIROS_AUDIT_OUTPUT_FILE")
	envConfig.AuditMinLevel = os.Getenv("KAIROS_AUDIT_MIN_LEVEL")

	if bufferStr := os.Getenv("KAIROS_AUDIT_BUFFER_SIZE"); bufferStr != "" {
		buffer, err := strconv.Atoi(bufferStr)
		if err != nil || buffer <= 0 {
			return errors.New(ErrCodeInvalidBufferSize, "invalid KAIROS_AUDIT_BUFFER_SIZE value")
		}
		envConfig.AuditBufferSize = buffer
	}

	if flushStr := os.Getenv("KAIROS_AUDIT_FLUSH_INTERVAL"); flushStr != "" {
		duration, err := time.ParseDuration(flushStr)
		if err != nil || duration <= 0 {
			return errors.New(ErrCodeInvalidFlush, "invalid KAIROS_AUDIT_FLUSH_INTERVAL format")
		}
		envConfig.AuditFlushInterval = duration
	}
	return nil
}

// convertEnvToConfig overlays the set values of envConfig onto config
func convertEnvToConfig(envConfig *EnvConfig, config *Config) error {
	if envConfig.Debounce > 0 {
		config.Debounce = envConfig.Debounce
	}
	if envConfig.DisableDebounce {
		config.DisableDebounce = true
	}
	if envConfig.MaxWatchedPaths > 0 {
		config.MaxWatchedPaths = envConfig.MaxWatchedPaths
	}
	if envConfig.EventRingCapacity > 0 {
		config.EventRingCapacity = envConfig.EventRingCapacity
	}

	return convertAuditConfig(envConfig, config)
}

func convertAuditConfig(envConfig *EnvConfig, config *Config) error {
	if !envConfig.AuditEnabled && envConfig.AuditOutputFile == "" {
		return nil
	}

	config.Audit.Enabled = envConfig.AuditEnabled || config.Audit.Enabled

	if envConfig.AuditOutputFile != "" {
		config.Audit.OutputFile = envConfig.AuditOutputFile
	}

	if envConfig.AuditMinLevel != "" {
		level, ok := parseAuditLevel(strings.ToLower(strings.TrimSpace(envConfig.AuditMinLevel)))
		if !ok {
			return errors.New(ErrCodeInvalidAuditConfig, "invalid audit level: "+envConfig.AuditMinLevel)
		}
		config.Audit.MinLevel = level
	}

	if envConfig.AuditBufferSize > 0 {
		config.Audit.BufferSize = envConfig.AuditBufferSize
	}
	if envConfig.AuditFlushInterval > 0 {
		config.Audit.FlushInterval = envConfig.AuditFlushInterval
	}
	return nil
}

// parseBool parses boolean values from environment variables
// Supports: true/false, 1/0, yes/no, on/off, enabled/disabled
func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on", "enabled":
		return true
	default:
		return false
	}
}
