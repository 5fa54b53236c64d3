// paths.go: Path validation and normalization for watched files
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agilira/go-errors"
)

const (
	maxPathLength = 4096
	maxPathDepth  = 50
)

// ValidateSecurePath rejects paths that cannot be watched safely: empty,
// encoded traversal, null bytes, control characters, excessive length or depth.
// Plain ".." segments are accepted because paths are cleaned before use.
func ValidateSecurePath(path string) error {
	if path == "" {
		return errors.New(ErrCodeInvalidPath, "empty path not allowed")
	}

	if len(path) > maxPathLength {
		return errors.New(ErrCodeInvalidPath, fmt.Sprintf("path too long (max %d characters): %d", maxPathLength, len(path)))
	}

	lower := strings.ToLower(path)
	for _, pattern := range []string{"%2e%2e", "%252e", "%2f", "%252f", "%5c", "%255c", "%00"} {
		if strings.Contains(lower, pattern) {
			return errors.New(ErrCodeInvalidPath, "path contains URL-encoded traversal pattern: "+pattern)
		}
	}

	if strings.Contains(path, "\x00") {
		return errors.New(ErrCodeInvalidPath, "null byte in path not allowed")
	}

	for _, char := range path {
		if char < 32 {
			return errors.New(ErrCodeInvalidPath, fmt.Sprintf("control character in path not allowed: %d", char))
		}
	}

	separators := strings.Count(path, "/") + strings.Count(path, "\\")
	if separators > maxPathDepth {
		return errors.New(ErrCodeInvalidPath, fmt.Sprintf("path too complex (max %d directory levels): %d", maxPathDepth, separators))
	}

	return nil
}

// normalizePath returns the absolute, cleaned form of path with symlinks in
// its parent directory resolved. The file itself need not exist, so removed
// files still match the events reported for them.
func normalizePath(path string) (string, error) {
	if err := ValidateSecurePath(path); err != nil {
		return "", err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, ErrCodeInvalidPath, "invalid file path").
			WithContext("path", path)
	}

	dir, base := filepath.Split(abs)
	if base == "" {
		return "", errors.New(ErrCodeInvalidPath, "path names a directory, not a file").
			WithContext("path", path)
	}

	if real, err := filepath.EvalSymlinks(dir); err == nil {
		dir = real
	}

	return filepath.Join(dir, base), nil
}

// normalizePaths normalizes every path and drops duplicates, preserving order.
func normalizePaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		n, err := normalizePath(p)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}
