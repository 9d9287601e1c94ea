// Package options reads typed values out of free-form chunker configuration.
//
// Configuration arrives from JSON (numbers are float64), YAML (int) and TOML
// (int64), so numeric readers accept all three.
package options

import (
	"fmt"
	"math"

	"github.com/custodia-labs/docpipe/internal/core/domain"
)

// Int returns cfg[key] as an int, or def when the key is absent.
func Int(cfg domain.ChunkerConfig, key string, def int) (int, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, invalid(key, "an integer", v)
		}
		return int(n), nil
	case float32:
		if float64(n) != math.Trunc(float64(n)) {
			return 0, invalid(key, "an integer", v)
		}
		return int(n), nil
	default:
		return 0, invalid(key, "an integer", v)
	}
}

// PositiveInt is Int that additionally rejects values below one.
func PositiveInt(cfg domain.ChunkerConfig, key string, def int) (int, error) {
	n, err := Int(cfg, key, def)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: %s must be positive, got %d", domain.ErrInvalidInput, key, n)
	}
	return n, nil
}

// Float returns cfg[key] as a float64, or def when the key is absent.
func Float(cfg domain.ChunkerConfig, key string, def float64) (float64, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	default:
		return 0, invalid(key, "a number", v)
	}
}

// Bool returns cfg[key] as a bool, or def when the key is absent.
func Bool(cfg domain.ChunkerConfig, key string, def bool) (bool, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, invalid(key, "a boolean", v)
	}
	return b, nil
}

// Strings returns cfg[key] as a string list, or def when the key is absent.
func Strings(cfg domain.ChunkerConfig, key string, def []string) ([]string, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, invalid(key, "a list of strings", v)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, invalid(key, "a list of strings", v)
	}
}

func invalid(key, want string, got any) error {
	return fmt.Errorf("%w: %s must be %s, got %T", domain.ErrInvalidInput, key, want, got)
}
