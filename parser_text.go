// parser_text.go: Line-based configuration formats
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"bufio"
	"bytes"
	"strings"
)

// splitKeyValue splits "key = value" and unquotes the value.
func splitKeyValue(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return "", "", false
	}
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}
	return key, value, true
}

// parseHCL handles the flat subset of HCL: key = value lines with # or //
// comments. Blocks are skipped.
func parseHCL(data []byte) map[string]interface{} {
	config := make(map[string]interface{})
	scanner := bufio.NewScanner(bytes.NewReader(data))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		if key, value, ok := splitKeyValue(line); ok {
			config[key] = parseValue(value)
		}
	}

	return config
}

// parseINI parses INI files. Each [section] becomes a nested object so
// that it decodes into a nested struct.
func parseINI(data []byte) map[string]interface{} {
	config := make(map[string]interface{})
	current := config
	scanner := bufio.NewScanner(bytes.NewReader(data))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSpace(line[1 : len(line)-1])
			section, ok := config[name].(map[string]interface{})
			if !ok {
				section = make(map[string]interface{})
				config[name] = section
			}
			current = section
			continue
		}

		if key, value, ok := splitKeyValue(line); ok {
			current[key] = parseValue(value)
		}
	}

	return config
}

// parseProperties parses Java-style properties (# and ! comments, flat keys).
func parseProperties(data []byte) map[string]interface{} {
	config := make(map[string]interface{})
	scanner := bufio.NewScanner(bytes.NewReader(data))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		if key, value, ok := splitKeyValue(line); ok {
			config[key] = parseValue(value)
		}
	}

	return config
}
