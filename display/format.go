package display

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/teranos/qconsole/errors"
)

// Format selects a structured output encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Formats lists the supported formats for flag help
var Formats = []Format{FormatTOML, FormatJSON, FormatYAML}

// ParseFormat accepts json, toml, yaml and yml in any case
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "toml":
		return FormatTOML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", errors.WithHintf(errors.Newf("unknown output format %q", s),
		"use one of: %s", joinFormats())
}

func joinFormats() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// Marshal encodes v in format f
func Marshal(v interface{}, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		data, err := MarshalJSONIndent(v)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal JSON")
		}
		return append(data, '\n'), nil

	case FormatTOML:
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		enc.SetIndentTables(true)
		if err := enc.Encode(v); err != nil {
			return nil, errors.Wrap(err, "failed to marshal TOML")
		}
		return buf.Bytes(), nil

	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, errors.Wrap(err, "failed to marshal YAML")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, "failed to marshal YAML")
		}
		return buf.Bytes(), nil
	}
	return nil, errors.Newf("unknown output format %q", f)
}

// Write encodes v in format f to w
func Write(w io.Writer, v interface{}, f Format) error {
	data, err := Marshal(v, f)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "failed to write output")
	}
	return nil
}

// Scalar renders a single configuration value the way it would appear on
// the right of "key =" in TOML
func Scalar(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	}
	data, err := toml.Marshal(map[string]interface{}{"v": v})
	if err != nil {
		return fmt.Sprint(v)
	}
	_, value, _ := strings.Cut(strings.TrimSpace(string(data)), "=")
	return strings.TrimSpace(value)
}
