// Package config provides layered configuration loading for the middleware.
//
// Settings are read from a YAML file and every leaf may be overridden by an
// environment variable or a Docker secret file. Overrides are resolved lazily
// per lookup, so a value injected after process start-up via a mounted secret
// is still picked up by the next lookup. Nothing is mutated globally.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSecretsDir is where Docker/Kubernetes mount secret files.
const DefaultSecretsDir = "/run/secrets"

var (
	// ErrConfigNotFound is returned when the config file does not exist.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrNotAMapping is returned when the YAML root is not a mapping.
	ErrNotAMapping = errors.New("config root must be a YAML mapping")
)

// Wrapper wraps a loaded YAML mapping and resolves env/secret overrides.
//
// The override key for a leaf is the upper-cased key path joined by
// underscores, e.g. prefix SQL_TO_ARC and path api_client.api_url resolve
// against the env var SQL_TO_ARC_API_CLIENT_API_URL and the secret file
// /run/secrets/sql_to_arc_api_client_api_url.
type Wrapper struct {
	data       map[string]any
	path       string // upper-cased key path, underscore-joined
	secretsDir string
}

// Load reads a YAML file and wraps it with the given override prefix.
func Load(path, prefix string) (*Wrapper, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted CLI flag
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}

		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if tree == nil {
		tree = make(map[string]any)
	}

	return FromData(tree, prefix), nil
}

// FromData wraps an already decoded YAML mapping.
func FromData(data map[string]any, prefix string) *Wrapper {
	return &Wrapper{
		data:       data,
		path:       strings.ToUpper(prefix),
		secretsDir: DefaultSecretsDir,
	}
}

// WithSecretsDir returns a copy of the wrapper reading secret files from dir.
// Intended for tests.
func (w *Wrapper) WithSecretsDir(dir string) *Wrapper {
	clone := *w
	clone.secretsDir = dir

	return &clone
}

// Section returns a child wrapper for a nested mapping. A missing or
// non-mapping key yields an empty section, so env/secret overrides below it
// still resolve.
func (w *Wrapper) Section(key string) *Wrapper {
	child := &Wrapper{
		data:       make(map[string]any),
		path:       w.childPath(key),
		secretsDir: w.secretsDir,
	}

	if m, ok := w.data[key].(map[string]any); ok {
		child.data = m
	}

	return child
}

// Has reports whether a key is present in the YAML tree or overridden.
func (w *Wrapper) Has(key string) bool {
	if _, ok := w.override(key); ok {
		return true
	}

	_, ok := w.data[key]

	return ok
}

// String returns the string value of a leaf, applying overrides first.
func (w *Wrapper) String(key string) (string, bool) {
	if v, ok := w.override(key); ok {
		return v, true
	}

	raw, ok := w.data[key]
	if !ok || raw == nil {
		return "", false
	}

	switch v := raw.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

// StringOr returns the string value of a leaf or a default.
func (w *Wrapper) StringOr(key, defaultValue string) string {
	if v, ok := w.String(key); ok {
		return v
	}

	return defaultValue
}

// Int returns the integer value of a leaf, applying overrides first.
func (w *Wrapper) Int(key string) (int, bool) {
	if v, ok := w.override(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, true
		}

		return 0, false
	}

	switch v := w.data[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, true
		}
	}

	return 0, false
}

// IntOr returns the integer value of a leaf or a default.
func (w *Wrapper) IntOr(key string, defaultValue int) int {
	if v, ok := w.Int(key); ok {
		return v
	}

	return defaultValue
}

// Bool returns the boolean value of a leaf, applying overrides first.
// Accepts "true", "1", "yes" and "false", "0", "no" (case-insensitive).
func (w *Wrapper) Bool(key string) (bool, bool) {
	if v, ok := w.override(key); ok {
		return parseBool(v)
	}

	switch v := w.data[key].(type) {
	case bool:
		return v, true
	case string:
		return parseBool(v)
	}

	return false, false
}

// BoolOr returns the boolean value of a leaf or a default.
func (w *Wrapper) BoolOr(key string, defaultValue bool) bool {
	if v, ok := w.Bool(key); ok {
		return v
	}

	return defaultValue
}

// StringSlice returns a list-valued leaf as strings. Non-string members are
// filtered out. Overrides provide a comma-separated list.
func (w *Wrapper) StringSlice(key string) []string {
	if v, ok := w.override(key); ok {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))

		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}

		return out
	}

	raw, ok := w.data[key].([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(raw))

	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}

	return out
}

// override consults the environment first, then the secrets directory.
func (w *Wrapper) override(key string) (string, bool) {
	fullKey := w.childPath(key)

	if v, ok := os.LookupEnv(fullKey); ok {
		return v, true
	}

	secretFile := filepath.Join(w.secretsDir, strings.ToLower(fullKey))
	if data, err := os.ReadFile(secretFile); err == nil { //nolint:gosec // fixed secrets dir
		return strings.TrimSpace(string(data)), true
	}

	return "", false
}

func (w *Wrapper) childPath(key string) string {
	upper := strings.ToUpper(key)
	if w.path == "" {
		return upper
	}

	return w.path + "_" + upper
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}

	return false, false
}
