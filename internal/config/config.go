// Package config loads gather operation configs and chunk inputs from disk and
// reads process settings from the environment.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/gather-mcp/pkg/types"
)

const (
	// DefaultDBPath is the default location for the record store
	DefaultDBPath = "~/.gather-mcp"

	// OperationType marks gather entries inside a pipeline file
	OperationType = "gather"
)

var (
	ErrUnsupportedFormat  = errors.New("unsupported file format")
	ErrOperationNotFound  = errors.New("operation not found")
	ErrAmbiguousOperation = errors.New("multiple gather operations; name one")
)

// Settings holds process-level settings taken from the environment
type Settings struct {
	DBPath   string
	LogLevel string
	LogJSON  bool
	Workers  int
}

// FromEnv reads GATHER_* variables, applying defaults for anything unset
func FromEnv() Settings {
	s := Settings{
		DBPath:   os.Getenv("GATHER_DB_PATH"),
		LogLevel: os.Getenv("GATHER_LOG_LEVEL"),
		Workers:  runtime.NumCPU(),
	}
	if s.DBPath == "" {
		s.DBPath = DefaultDBPath
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if v, err := strconv.ParseBool(os.Getenv("GATHER_LOG_JSON")); err == nil {
		s.LogJSON = v
	}
	if n, err := strconv.Atoi(os.Getenv("GATHER_WORKERS")); err == nil && n > 0 {
		s.Workers = n
	}
	return s
}

// ExpandHome resolves a leading ~ to the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// LoadOperation reads a gather operation config from a YAML or JSON file.
//
// A file with a top-level "operations" list is treated as a pipeline: the entry
// whose name matches is returned, or the only entry of type gather when name is
// empty. Any other file is the operation config itself.
func LoadOperation(path, name string) (map[string]any, error) {
	doc, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	op, err := operationFromDocument(doc, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return op, nil
}

// ParseOperation is LoadOperation for inline YAML or JSON text
func ParseOperation(text, name string) (map[string]any, error) {
	var doc any
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return operationFromDocument(doc, name)
}

func operationFromDocument(doc any, name string) (map[string]any, error) {
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top level must be a mapping, got %T", doc)
	}

	opsRaw, ok := root["operations"]
	if !ok {
		return root, nil
	}
	ops, ok := opsRaw.([]any)
	if !ok {
		return nil, fmt.Errorf("operations must be a list, got %T", opsRaw)
	}
	return selectOperation(ops, name)
}

func selectOperation(ops []any, name string) (map[string]any, error) {
	var found map[string]any
	for _, o := range ops {
		op, ok := o.(map[string]any)
		if !ok {
			continue
		}
		if name != "" {
			if op["name"] == name {
				return op, nil
			}
			continue
		}
		if op["type"] != OperationType {
			continue
		}
		if found != nil {
			return nil, ErrAmbiguousOperation
		}
		found = op
	}
	if found == nil {
		if name != "" {
			return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, name)
		}
		return nil, fmt.Errorf("%w: no operation of type %s", ErrOperationNotFound, OperationType)
	}
	return found, nil
}

// LoadRecords reads chunk records from a JSON array or YAML sequence file.
// JSON numbers are kept as json.Number so large order values stay exact.
func LoadRecords(path string) ([]types.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return DecodeRecordsJSON(data)
	case ".yaml", ".yml":
		var raw []map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		out := make([]types.Record, len(raw))
		for i, m := range raw {
			out[i] = types.Record(m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// DecodeRecordsJSON parses a JSON array of objects into records
func DecodeRecordsJSON(data []byte) ([]types.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	out := make([]types.Record, len(raw))
	for i, m := range raw {
		if m == nil {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
		out[i] = types.Record(m)
	}
	return out, nil
}

func decodeFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var doc any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}
