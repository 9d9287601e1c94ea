package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docpipe/internal/core/domain"
)

const threeSentences = "First sentence. Second sentence. Third sentence."

func TestChunkCmd_Run(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	meta := addTextDocument(t, "notes.txt", threeSentences)

	out, err := execute("chunk", "run", meta.DocumentID, "sentence_v1", "--set", "sentences_per_chunk=1")
	require.NoError(t, err)
	assert.Contains(t, out, "Chunked with sentence_v1@1.0: 3 chunks")

	got, err := catalogService.GetDocument(context.Background(), meta.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusChunked, got.Status)
	require.Len(t, got.Chunking, 1)
	assert.Equal(t, 3, got.Chunking[0].NumChunks)
}

func TestChunkCmd_RunUnchanged(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	meta := addTextDocument(t, "notes.txt", threeSentences)

	_, err := execute("chunk", "run", meta.DocumentID, "sentence_v1@1.0")
	require.NoError(t, err)

	out, err := execute("chunk", "run", meta.DocumentID, "sentence_v1@1.0")
	require.NoError(t, err)
	assert.Contains(t, out, "Unchanged: sentence_v1@1.0")

	out, err = execute("chunk", "run", "--force", meta.DocumentID, "sentence_v1@1.0")
	require.NoError(t, err)
	assert.Contains(t, out, "Chunked with sentence_v1@1.0")
	assert.Contains(t, out, "previous chunked file archived as")
}

func TestChunkCmd_RunConfigFile(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	meta := addTextDocument(t, "notes.txt", threeSentences)
	cfgPath := filepath.Join(t.TempDir(), "sentence.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("sentences_per_chunk: 3\n"), 0o600))

	out, err := execute("chunk", "run", "--config-file", cfgPath, meta.DocumentID, "sentence_v1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 chunks")
}

func TestChunkCmd_RunUnknownChunker(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	meta := addTextDocument(t, "notes.txt", threeSentences)

	_, err := execute("chunk", "run", meta.DocumentID, "nonexistent_v9")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChunkCmd_ListShowDelete(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	meta := addTextDocument(t, "notes.txt", threeSentences)
	_, err := execute("chunk", "run", meta.DocumentID, "sentence_v1", "--set", "sentences_per_chunk=1")
	require.NoError(t, err)

	out, err := execute("chunk", "list", meta.DocumentID)
	require.NoError(t, err)
	assert.Contains(t, out, "Chunking runs for research/papers/notes")
	assert.Contains(t, out, "Chunks:  3")

	out, err = execute("chunk", "show", meta.DocumentID, "sentence_v1")
	require.NoError(t, err)
	assert.Contains(t, out, "chunk_001")
	assert.Contains(t, out, "Second sentence.")
	assert.Contains(t, out, "Total: 3 chunks")

	_, err = execute("chunk", "delete", meta.DocumentID, "sentence_v1")
	require.Error(t, err, "delete needs an explicit version")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	out, err = execute("chunk", "delete", meta.DocumentID, "sentence_v1@1.0")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted sentence_v1@1.0")

	out, err = execute("chunk", "list", meta.DocumentID)
	require.NoError(t, err)
	assert.Contains(t, out, "No chunking runs for research/papers/notes")
}

func TestChunkCmd_ShowWithoutRun(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	meta := addTextDocument(t, "notes.txt", threeSentences)

	_, err := execute("chunk", "show", meta.DocumentID, "paragraph_v1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChunkCmd_Strategies(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	out, err := execute("chunk", "strategies")
	require.NoError(t, err)
	for _, name := range []string{"fixed_v1", "sentence_v1", "paragraph_v1", "recursive_v1", "hierarchy_v1"} {
		assert.Contains(t, out, name)
	}
}

func TestParseConfigFlags(t *testing.T) {
	cfg, err := parseConfigFlags([]string{
		"chunk_size=500",
		"overlap_ratio=0.25",
		"keep_headings=true",
		"separators=[\"\\n\\n\", \" \"]",
		"label=plain",
	})
	require.NoError(t, err)

	assert.Equal(t, 500, cfg["chunk_size"])
	assert.InDelta(t, 0.25, cfg["overlap_ratio"], 1e-9)
	assert.Equal(t, true, cfg["keep_headings"])
	assert.Equal(t, []any{"\n\n", " "}, cfg["separators"])
	assert.Equal(t, "plain", cfg["label"])
}

func TestParseConfigFlags_Invalid(t *testing.T) {
	tests := []string{"novalue", "=5", "bad=[unclosed"}
	for _, pair := range tests {
		t.Run(pair, func(t *testing.T) {
			_, err := parseConfigFlags([]string{pair})
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestParseChunkerRef(t *testing.T) {
	name, version := parseChunkerRef("recursive_v1@1.0")
	assert.Equal(t, "recursive_v1", name)
	assert.Equal(t, "1.0", version)

	name, version = parseChunkerRef("recursive_v1")
	assert.Equal(t, "recursive_v1", name)
	assert.Empty(t, version)
}
