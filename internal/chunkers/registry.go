// Package chunkers holds the registry of chunking strategies.
//
// The registry is an explicit table built once at startup. Strategies are
// keyed by (name, version); registering the same key twice is an error.
package chunkers

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

// Registry maps (name, version) to a strategy. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	strategies map[driven.ChunkerKey]driven.ChunkStrategy
	latest     map[string]string
}

var _ driven.ChunkerRegistry = (*Registry)(nil)

// NewRegistry builds a registry from the given strategies.
func NewRegistry(strategies ...driven.ChunkStrategy) (*Registry, error) {
	r := &Registry{
		strategies: make(map[driven.ChunkerKey]driven.ChunkStrategy, len(strategies)),
		latest:     make(map[string]string),
	}
	for _, s := range strategies {
		key := driven.ChunkerKey{Name: s.Name(), Version: s.Version()}
		if err := validateKey(key); err != nil {
			return nil, err
		}
		if _, dup := r.strategies[key]; dup {
			return nil, fmt.Errorf("%w: chunker %s registered twice", domain.ErrAlreadyExists, key)
		}
		r.strategies[key] = s
		if cur, ok := r.latest[key.Name]; !ok || compareVersions(key.Version, cur) > 0 {
			r.latest[key.Name] = key.Version
		}
	}
	return r, nil
}

// Lookup resolves a strategy. An empty version selects the highest
// registered version of name.
func (r *Registry) Lookup(name, version string) (driven.ChunkStrategy, error) {
	if version == "" {
		v, ok := r.latest[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown chunker: %s", domain.ErrNotFound, name)
		}
		version = v
	}
	key := driven.ChunkerKey{Name: name, Version: version}
	s, ok := r.strategies[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown chunker: %s", domain.ErrNotFound, key)
	}
	return s, nil
}

// Keys returns all registered keys sorted by name, then version.
func (r *Registry) Keys() []driven.ChunkerKey {
	keys := make([]driven.ChunkerKey, 0, len(r.strategies))
	for k := range r.strategies {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return compareVersions(keys[i].Version, keys[j].Version) < 0
	})
	return keys
}

// validateKey rejects names and versions that would make chunked filenames
// ambiguous or escape the chunked directory.
func validateKey(key driven.ChunkerKey) error {
	for _, part := range []string{key.Name, key.Version} {
		if err := domain.ValidateName(part); err != nil {
			return fmt.Errorf("%w: chunker %s: %w", domain.ErrInvalidInput, key, err)
		}
	}
	return nil
}

// compareVersions compares dotted versions numerically segment by segment,
// falling back to string order for non-numeric segments.
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < max(len(as), len(bs)); i++ {
		var x, y string
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		xn, xerr := strconv.Atoi(x)
		yn, yerr := strconv.Atoi(y)
		switch {
		case xerr == nil && yerr == nil:
			if xn != yn {
				if xn < yn {
					return -1
				}
				return 1
			}
		case x != y:
			return strings.Compare(x, y)
		}
	}
	return 0
}
