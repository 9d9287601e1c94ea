package chunkers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

type mockStrategy struct {
	name    string
	version string
}

func (m *mockStrategy) Name() string                        { return m.name }
func (m *mockStrategy) Version() string                     { return m.version }
func (m *mockStrategy) DefaultConfig() domain.ChunkerConfig { return nil }
func (m *mockStrategy) Chunk(_ context.Context, md string, _ domain.ChunkerConfig) (domain.ChunkResult, error) {
	return domain.NewChunkResult([]string{md}), nil
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(
		&mockStrategy{name: "a_v1", version: "1.0"},
		&mockStrategy{name: "a_v1", version: "1.0"},
	)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestNewRegistry_RejectsBadNames(t *testing.T) {
	for _, s := range []*mockStrategy{
		{name: "a__b", version: "1.0"},
		{name: "a/b", version: "1.0"},
		{name: "ok", version: "1__0"},
		{name: "", version: "1.0"},
	} {
		_, err := NewRegistry(s)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%s@%s", s.name, s.version)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r, err := NewRegistry(
		&mockStrategy{name: "a", version: "1.9"},
		&mockStrategy{name: "a", version: "1.10"},
		&mockStrategy{name: "b", version: "2.0"},
	)
	require.NoError(t, err)

	s, err := r.Lookup("a", "")
	require.NoError(t, err)
	assert.Equal(t, "1.10", s.Version())

	s, err = r.Lookup("a", "1.9")
	require.NoError(t, err)
	assert.Equal(t, "1.9", s.Version())

	_, err = r.Lookup("a", "3.0")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.Lookup("missing", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, []driven.ChunkerKey{
		{Name: "a", Version: "1.9"},
		{Name: "a", Version: "1.10"},
		{Name: "b", Version: "2.0"},
	}, r.Keys())
}

func TestDefaults(t *testing.T) {
	r, err := Defaults(nil)
	require.NoError(t, err)
	var names []string
	for _, k := range r.Keys() {
		names = append(names, k.Name)
	}
	assert.Equal(t, []string{
		"fixed_v1", "hierarchy_v1", "paragraph_v1", "recursive_v1", "semantic_v1", "sentence_v1",
	}, names)

	for _, k := range r.Keys() {
		s, err := r.Lookup(k.Name, k.Version)
		require.NoError(t, err)
		_, err = domain.Fingerprint([]byte("x"), s.DefaultConfig())
		assert.NoError(t, err, "default config of %s must be JSON serializable", k)
	}
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, 0, compareVersions("1.0", "1.0"))
	assert.Equal(t, -1, compareVersions("1.2", "1.10"))
	assert.Equal(t, 1, compareVersions("2", "1.9"))
	assert.Equal(t, 1, compareVersions("1.0.1", "1.0"))
}
