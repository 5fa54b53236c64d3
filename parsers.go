// parsers.go: Format detection and decoding for Kairos loaders
//
// Supported Formats:
// - JSON (.json) - encoding/json
// - YAML (.yml, .yaml) - go.yaml.in/yaml/v3
// - TOML (.toml) - github.com/BurntSushi/toml
// - HCL (.hcl, .tf) - flat key = value subset
// - INI (.ini, .conf, .cfg, .config) - sections become nested objects
// - Properties (.properties) - flat key=value
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// ConfigFormat represents supported configuration file formats
type ConfigFormat int

const (
	FormatJSON ConfigFormat = iota
	FormatYAML
	FormatTOML
	FormatHCL
	FormatINI
	FormatProperties
	FormatUnknown
)

// String returns the string representation of the config format
func (cf ConfigFormat) String() string {
	switch cf {
	case FormatJSON:
		return "JSON"
	case FormatYAML:
		return "YAML"
	case FormatTOML:
		return "TOML"
	case FormatHCL:
		return "HCL"
	case FormatINI:
		return "INI"
	case FormatProperties:
		return "Properties"
	default:
		return "Unknown"
	}
}

// ParseFormat maps a format name such as "yaml" or "json" to a ConfigFormat.
func ParseFormat(name string) ConfigFormat {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	case "toml":
		return FormatTOML
	case "hcl", "tf":
		return FormatHCL
	case "ini", "conf", "cfg", "config":
		return FormatINI
	case "properties":
		return FormatProperties
	default:
		return FormatUnknown
	}
}

// DetectFormat detects the configuration format from the file extension
func DetectFormat(filePath string) ConfigFormat {
	ext := filepath.Ext(filePath)
	if ext == "" {
		return FormatUnknown
	}
	return ParseFormat(ext)
}

// ConfigParser decodes a format into a generic map. Registered parsers take
// precedence over the built-in ones for the formats they support.
type ConfigParser interface {
	Parse(data []byte) (map[string]interface{}, error)
	Supports(format ConfigFormat) bool
	Name() string
}

var (
	customParsers []ConfigParser
	parserMutex   sync.RWMutex
)

// RegisterParser registers a custom parser.
func RegisterParser(parser ConfigParser) {
	parserMutex.Lock()
	defer parserMutex.Unlock()
	customParsers = append(customParsers, parser)
}

func customParserFor(format ConfigFormat) ConfigParser {
	parserMutex.RLock()
	defer parserMutex.RUnlock()
	for _, parser := range customParsers {
		if parser.Supports(format) {
			return parser
		}
	}
	return nil
}

// ParseConfig parses data into a generic map.
func ParseConfig(data []byte, format ConfigFormat) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := Decode(format, data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}

// Decode parses data in the given format into out, which must be a pointer.
func Decode(format ConfigFormat, data []byte, out interface{}) error {
	if parser := customParserFor(format); parser != nil {
		m, err := parser.Parse(data)
		if err != nil {
			return errors.Wrap(err, ErrCodeParseFailed, fmt.Sprintf("%s parser failed: %v", parser.Name(), err)).
				WithContext("format", format.String())
		}
		return decodeMap(m, out, format)
	}

	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, out)
	case FormatYAML:
		err = yaml.Unmarshal(data, out)
	case FormatTOML:
		err = toml.Unmarshal(data, out)
	case FormatHCL:
		return decodeMap(parseHCL(data), out, format)
	case FormatINI:
		return decodeMap(parseINI(data), out, format)
	case FormatProperties:
		return decodeMap(parseProperties(data), out, format)
	default:
		return errors.New(ErrCodeUnsupportedFormat, "unsupported format: "+format.String())
	}

	if err != nil {
		return errors.Wrap(err, ErrCodeParseFailed, fmt.Sprintf("invalid %s: %v", format, err)).
			WithContext("format", format.String())
	}
	return nil
}

// decodeMap moves a generic map into out through a JSON round-trip so that
// struct tags and field matching behave as for JSON files.
func decodeMap(m map[string]interface{}, out interface{}, format ConfigFormat) error {
	if target, ok := out.(*map[string]interface{}); ok {
		*target = m
		return nil
	}

	data, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, ErrCodeParseFailed, fmt.Sprintf("cannot convert %s document: %v", format, err))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, ErrCodeParseFailed, fmt.Sprintf("cannot decode %s document: %v", format, err)).
			WithContext("format", format.String())
	}
	return nil
}

// parseValue converts a scalar from a line-based format into bool, int,
// float or string.
func parseValue(value string) interface{} {
	if strings.EqualFold(value, "true") {
		return true
	}
	if strings.EqualFold(value, "false") {
		return false
	}
	if intVal, err := strconv.Atoi(value); err == nil {
		return intVal
	}
	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return floatVal
	}
	return value
}
