// config_validation.go - configuration validation for Kairos
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// Validation limits
const (
	maxRecommendedDebounce   = time.Minute
	maxRecommendedPaths      = 10000
	maxRecommendedRing       = 1 << 20
	minStableDebounceWarning = 10 * time.Millisecond
)

// Validation errors
var (
	ErrInvalidDebounce      = errors.New(ErrCodeInvalidDebounce, "debounce window must not be negative")
	ErrDebounceTooLarge     = errors.New(ErrCodeDebounceTooLarge, "debounce window exceeds one minute")
	ErrInvalidMaxPaths      = errors.New(ErrCodeInvalidMaxPaths, "max watched paths must be positive")
	ErrMaxPathsTooLarge     = errors.New(ErrCodeMaxPathsTooLarge, "max watched paths exceeds recommended limit (10000)")
	ErrInvalidRingCapacity  = errors.New(ErrCodeInvalidRing, "event ring capacity must be a positive power of 2")
	ErrInvalidBufferSize    = errors.New(ErrCodeInvalidBufferSize, "audit buffer size must not be negative")
	ErrInvalidFlushInterval = errors.New(ErrCodeInvalidFlush, "audit flush interval must not be negative")
	ErrInvalidOutputFile    = errors.New(ErrCodeInvalidOutputFile, "audit output file path is invalid")
)

// sentinelErrors maps ValidateDetailed messages back to their error values.
var sentinelErrors = []error{
	ErrInvalidDebounce,
	ErrDebounceTooLarge,
	ErrInvalidMaxPaths,
	ErrMaxPathsTooLarge,
	ErrInvalidRingCapacity,
	ErrInvalidBufferSize,
	ErrInvalidFlushInterval,
	ErrInvalidOutputFile,
}

// ValidationResult contains the result of configuration validation
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// String returns a human-readable representation of validation results
func (vr ValidationResult) String() string {
	if vr.Valid {
		if len(vr.Warnings) == 0 {
			return "Configuration is valid"
		}
		return fmt.Sprintf("Configuration is valid with %d warning(s)", len(vr.Warnings))
	}
	return fmt.Sprintf("Configuration is invalid: %d error(s), %d warning(s)",
		len(vr.Errors), len(vr.Warnings))
}

// Validate returns the first validation error, or nil. Zero values are
// accepted since WithDefaults fills them in.
func (c *Config) Validate() error {
	result := c.ValidateDetailed()
	if result.Valid {
		return nil
	}

	first := result.Errors[0]
	for _, sentinel := range sentinelErrors {
		if sentinel.Error() == first {
			return sentinel
		}
	}
	return errors.New(ErrCodeInvalidConfig, first)
}

// ValidateDetailed performs all checks and returns errors and warnings
func (c *Config) ValidateDetailed() ValidationResult {
	result := ValidationResult{
		Valid:    true,
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}

	c.validateDebounce(&result)
	c.validateLimits(&result)
	c.validateAuditConfig(&result)

	result.Valid = len(result.Errors) == 0
	return result
}

func (c *Config) validateDebounce(result *ValidationResult) {
	switch {
	case c.Debounce < 0:
		result.Errors = append(result.Errors, ErrInvalidDebounce.Error())
	case c.Debounce > maxRecommendedDebounce:
		result.Errors = append(result.Errors, ErrDebounceTooLarge.Error())
	case c.Debounce > 0 && c.Debounce < minStableDebounceWarning && !c.DisableDebounce:
		result.Warnings = append(result.Warnings,
			"Debounce below 10ms may reload on partially written files")
	}

	if c.DisableDebounce && c.Debounce > 0 {
		result.Warnings = append(result.Warnings,
			"Debounce is set but DisableDebounce ignores it")
	}
}

func (c *Config) validateLimits(result *ValidationResult) {
	if c.MaxWatchedPaths < 0 {
		result.Errors = append(result.Errors, ErrInvalidMaxPaths.Error())
	} else if c.MaxWatchedPaths > maxRecommendedPaths {
		result.Errors = append(result.Errors, ErrMaxPathsTooLarge.Error())
	}

	if c.EventRingCapacity < 0 || c.EventRingCapacity > maxRecommendedRing {
		result.Errors = append(result.Errors, ErrInvalidRingCapacity.Error())
	} else if c.EventRingCapacity > 0 && c.EventRingCapacity&(c.EventRingCapacity-1) != 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Event ring capacity %d will be rounded up to a power of 2", c.EventRingCapacity))
	}
}

func (c *Config) validateAuditConfig(result *ValidationResult) {
	if !c.Audit.Enabled {
		return
	}

	if c.Audit.BufferSize < 0 {
		result.Errors = append(result.Errors, ErrInvalidBufferSize.Error())
	} else if c.Audit.BufferSize > 10000 {
		result.Warnings = append(result.Warnings, "Large audit buffer size may consume significant memory")
	}

	if c.Audit.FlushInterval < 0 {
		result.Errors = append(result.Errors, ErrInvalidFlushInterval.Error())
	}

	if c.Audit.OutputFile == "" {
		result.Warnings = append(result.Warnings,
			"Audit output file not set, events go to the shared database "+unifiedAuditPath())
		return
	}
	if err := validateOutputFile(c.Audit.OutputFile); err != nil {
		result.Errors = append(result.Errors, ErrInvalidOutputFile.Error())
	}
}

// validateOutputFile rejects audit paths that cannot name a regular file.
func validateOutputFile(outputFile string) error {
	cleanPath := filepath.Clean(outputFile)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New(ErrCodeInvalidOutputFile,
			fmt.Sprintf("path '%s' is not a valid file path", outputFile))
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return errors.New(ErrCodeInvalidOutputFile,
			fmt.Sprintf("'%s' is a directory", outputFile))
	}
	return nil
}

// ValidateEnvironmentConfig validates the configuration loaded from KAIROS_* variables
func ValidateEnvironmentConfig() error {
	config, err := LoadConfigFromEnv()
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "failed to load config from environment")
	}
	return config.Validate()
}

// GetValidationErrorCode extracts the error code from a Kairos error
func GetValidationErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if code := errorCode(err); code != "" {
		return code
	}

	errStr := err.Error()

	// go-errors format: [CODE]: Message
	if len(errStr) > 3 && errStr[0] == '[' {
		if idx := strings.IndexByte(errStr, ']'); idx > 0 {
			return errStr[1:idx]
		}
	}

	if idx := strings.IndexByte(errStr, ':'); idx >= 0 {
		return errStr[:idx]
	}
	return errStr
}

// IsValidationError checks if an error carries a Kairos error code
func IsValidationError(err error) bool {
	return strings.HasPrefix(GetValidationErrorCode(err), "KAIROS_")
}
