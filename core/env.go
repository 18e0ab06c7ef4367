package core

import (
	"context"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvRawConfigLoader reads SYNC_* environment variables into the nested raw
// config map. DotenvPath, when set, is loaded first without overriding the
// process environment.
type EnvRawConfigLoader struct {
	Prefix     string
	DotenvPath string
}

func (l EnvRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	prefix := strings.TrimSpace(l.Prefix)
	if prefix == "" {
		prefix = "SYNC_"
	}
	if path := strings.TrimSpace(l.DotenvPath); path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	raw := map[string]any{}
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		path := strings.Split(strings.ToLower(strings.TrimPrefix(key, prefix)), "__")
		setRawPath(raw, path, value)
	}
	return raw, nil
}

func setRawPath(raw map[string]any, path []string, value string) {
	if len(path) == 0 || path[0] == "" {
		return
	}
	if len(path) == 1 {
		raw[path[0]] = coerceEnvValue(path[0], value)
		return
	}
	child, ok := raw[path[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		raw[path[0]] = child
	}
	setRawPath(child, path[1:], value)
}

// coerceEnvValue keeps values as strings except list-valued keys, which split
// on commas. Numeric coercion is left to cfgx decoding.
func coerceEnvValue(key string, value string) any {
	if key != "encryption_keys" {
		return value
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
