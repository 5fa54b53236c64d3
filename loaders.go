// loaders.go: Ready-made loaders for single-file configurations
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"os"

	"github.com/agilira/go-errors"
)

// LoadFile returns a loader that decodes the primary path in format.
// FormatUnknown detects the format from the file extension.
//
// A missing file is not an error: the loader yields *def, or the zero
// value of T when def is nil. A file that cannot be parsed is an error, so
// the previously published value stays in place.
func LoadFile[T any](format ConfigFormat, def *T) Loader[T] {
	return func(ctx *Context) (T, error) {
		var zero T
		path := ctx.PrimaryPath()

		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the watch configuration
		if err != nil {
			if os.IsNotExist(err) {
				if def != nil {
					return *def, nil
				}
				return zero, nil
			}
			return zero, errors.Wrap(err, ErrCodeLoaderFailed, "failed to read config file: "+err.Error()).
				WithContext("path", path)
		}

		f := format
		if f == FormatUnknown {
			f = DetectFormat(path)
		}

		var out T
		if err := Decode(f, data, &out); err != nil {
			return zero, err
		}
		return out, nil
	}
}

// LoadJSON decodes the primary path as JSON; a missing file yields the zero value.
func LoadJSON[T any]() Loader[T] {
	return LoadFile[T](FormatJSON, nil)
}

// LoadJSONOr decodes the primary path as JSON; a missing file yields def.
func LoadJSONOr[T any](def T) Loader[T] {
	return LoadFile(FormatJSON, &def)
}

// LoadYAML decodes the primary path as YAML.
func LoadYAML[T any]() Loader[T] {
	return LoadFile[T](FormatYAML, nil)
}

// LoadTOML decodes the primary path as TOML.
func LoadTOML[T any]() Loader[T] {
	return LoadFile[T](FormatTOML, nil)
}

// LoadINI decodes the primary path as INI, one nested object per section.
func LoadINI[T any]() Loader[T] {
	return LoadFile[T](FormatINI, nil)
}

// LoadProperties decodes the primary path as a Java-style properties file.
func LoadProperties[T any]() Loader[T] {
	return LoadFile[T](FormatProperties, nil)
}

// LoadAuto decodes the primary path in the format implied by its extension.
func LoadAuto[T any]() Loader[T] {
	return LoadFile[T](FormatUnknown, nil)
}
