package cli

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docpipe/internal/core/domain"
)

// parseChunkerRef splits "name@version". The version may be empty.
func parseChunkerRef(ref string) (name, version string) {
	name, version, _ = strings.Cut(ref, "@")
	return name, version
}

// parseConfigFlags builds a chunker config from key=value pairs. Values are
// YAML scalars or flow collections, so 5, 0.9, true and [a, b] keep their types.
func parseConfigFlags(pairs []string) (domain.ChunkerConfig, error) {
	cfg := domain.ChunkerConfig{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: --set expects key=value, got %q", domain.ErrInvalidInput, pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("%w: value of %s: %v", domain.ErrInvalidInput, key, err)
		}
		cfg[key] = v
	}
	return cfg, nil
}

// loadConfigFile reads a YAML mapping of chunker options.
func loadConfigFile(path string) (domain.ChunkerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	cfg := domain.ChunkerConfig{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, path, err)
	}
	return cfg, nil
}
