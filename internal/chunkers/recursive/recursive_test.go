package recursive

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docpipe/internal/core/domain"
)

func TestStrategy_ChunkRespectsSize(t *testing.T) {
	var paragraphs []string
	for i := 0; i < 20; i++ {
		paragraphs = append(paragraphs, strings.Repeat("word ", 15))
	}
	text := strings.Join(paragraphs, "\n\n")

	res, err := New().Chunk(context.Background(), text, domain.ChunkerConfig{
		"chunk_size":    200,
		"chunk_overlap": 0,
	})
	require.NoError(t, err)
	require.NoError(t, domain.ValidateChunkResult(res))
	assert.Greater(t, res.Count, 1)
	for _, c := range res.Chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 200)
		assert.NotEmpty(t, c.Content)
	}
}

func TestStrategy_ChunkSmallInput(t *testing.T) {
	res, err := New().Chunk(context.Background(), "short text", New().DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "short text", res.Chunks[0].Content)
}

func TestStrategy_ChunkInvalidOverlap(t *testing.T) {
	_, err := New().Chunk(context.Background(), "text", domain.ChunkerConfig{
		"chunk_size":    100,
		"chunk_overlap": 100,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStrategy_DefaultConfigIsJSONStable(t *testing.T) {
	a, err := domain.Fingerprint([]byte("x"), New().DefaultConfig())
	require.NoError(t, err)
	b, err := domain.Fingerprint([]byte("x"), New().DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
