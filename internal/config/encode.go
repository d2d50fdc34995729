// SPDX-License-Identifier: MPL-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	FormatCUE  Format = "cue"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// ErrInvalidFormat is returned for an unsupported output format.
var ErrInvalidFormat = errors.New("invalid config format")

// Format is an output encoding for the effective configuration.
type Format string

// Formats lists the supported output formats.
func Formats() []Format {
	return []Format{FormatCUE, FormatYAML, FormatTOML, FormatJSON}
}

// Encode renders cfg in the requested format.
func Encode(cfg *Config, format Format) (string, error) {
	switch Format(strings.ToLower(string(format))) {
	case FormatCUE, "":
		return GenerateCUE(cfg), nil
	case FormatYAML:
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("encode yaml: %w", err)
		}
		return string(out), nil
	case FormatTOML:
		out, err := toml.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("encode toml: %w", err)
		}
		return string(out), nil
	case FormatJSON:
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode json: %w", err)
		}
		return string(out) + "\n", nil
	default:
		return "", fmt.Errorf("%w %q (valid: cue, yaml, toml, json)", ErrInvalidFormat, format)
	}
}
