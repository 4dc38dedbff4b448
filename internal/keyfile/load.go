package keyfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadKey reads, parses, and validates an answer key file.
// The format follows the extension: .json, .csv or .txt, anything else is YAML.
func LoadKey(path string) (KeyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return KeyFile{}, fmt.Errorf("read answer key: %w", err)
	}
	key, err := ParseKey(data, formatOf(path))
	if err != nil {
		return KeyFile{}, fmt.Errorf("answer key %s: %w", filepath.Base(path), err)
	}
	return key, nil
}

// LoadResponses reads, parses, and validates a candidate response file.
func LoadResponses(path string) (ResponseFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ResponseFile{}, fmt.Errorf("read responses: %w", err)
	}
	resp, err := ParseResponses(data, formatOf(path))
	if err != nil {
		return ResponseFile{}, fmt.Errorf("responses %s: %w", filepath.Base(path), err)
	}
	return resp, nil
}

// Format names a supported file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".csv", ".txt":
		return FormatCSV
	}
	return FormatYAML
}

// ParseKey decodes and validates an answer key.
func ParseKey(data []byte, format Format) (KeyFile, error) {
	var key KeyFile
	var err error
	switch format {
	case FormatJSON:
		err = decodeJSON(data, &key)
	case FormatCSV:
		key, err = parseKeyCSV(data)
	default:
		err = decodeYAML(data, &key)
	}
	if err != nil {
		return KeyFile{}, err
	}
	if err := Validate(key); err != nil {
		return KeyFile{}, err
	}
	if _, err := key.Entries(); err != nil {
		return KeyFile{}, err
	}
	if _, err := key.OptionAlphabet(); err != nil {
		return KeyFile{}, err
	}
	return key, nil
}

// ParseResponses decodes and validates a response file.
func ParseResponses(data []byte, format Format) (ResponseFile, error) {
	var resp ResponseFile
	var err error
	switch format {
	case FormatJSON:
		err = decodeJSON(data, &resp)
	case FormatCSV:
		resp, err = parseResponsesCSV(data)
	default:
		err = decodeYAML(data, &resp)
	}
	if err != nil {
		return ResponseFile{}, err
	}
	if err := Validate(resp); err != nil {
		return ResponseFile{}, err
	}
	return resp, nil
}

func decodeJSON(data []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("parse json: multiple documents are not supported")
		}
		return fmt.Errorf("parse json: %w", err)
	}
	return nil
}

func decodeYAML(data []byte, v any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("parse yaml: multiple documents are not supported")
		}
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}
