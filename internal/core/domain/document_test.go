package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "report", false},
		{"with spaces", "Q3 report", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"hidden", ".staging", true},
		{"dot dot", "..", true},
		{"reserved separator", "a__b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, ViolationInvalidName, verr.Violation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseSubcatalogPath(t *testing.T) {
	p, err := ParseSubcatalogPath("finance/2024")
	require.NoError(t, err)
	assert.Equal(t, "finance", p.Catalog)
	assert.Equal(t, "2024", p.Subcatalog)
	assert.Equal(t, "finance/2024", p.String())

	_, err = ParseSubcatalogPath("finance")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseSubcatalogPath("a/b/c")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMetadata_ChunkingRuns(t *testing.T) {
	m := &Metadata{Conversion: &ConversionRecord{Tool: "pdf"}, Status: StatusConverted}

	m.SetChunkingRun(ChunkingRecord{Chunker: "sentence_v1", ChunkerVersion: "1.0", NumChunks: 3})
	m.SetChunkingRun(ChunkingRecord{Chunker: "paragraph_v1", ChunkerVersion: "1.0", NumChunks: 2})
	assert.Equal(t, StatusChunked, m.Status)
	require.Len(t, m.Chunking, 2)

	// Same key replaces.
	m.SetChunkingRun(ChunkingRecord{Chunker: "sentence_v1", ChunkerVersion: "1.0", NumChunks: 5})
	require.Len(t, m.Chunking, 2)
	assert.Equal(t, 5, m.ChunkingRun("sentence_v1", "1.0").NumChunks)

	// Different version appends.
	m.SetChunkingRun(ChunkingRecord{Chunker: "sentence_v1", ChunkerVersion: "2.0", NumChunks: 1})
	assert.Len(t, m.Chunking, 3)

	assert.True(t, m.RemoveChunkingRun("sentence_v1", "1.0"))
	assert.False(t, m.RemoveChunkingRun("sentence_v1", "1.0"))
	assert.Nil(t, m.ChunkingRun("sentence_v1", "1.0"))

	m.RemoveChunkingRun("sentence_v1", "2.0")
	m.RemoveChunkingRun("paragraph_v1", "1.0")
	assert.Equal(t, StatusConverted, m.Status)
}

func TestMetadata_ClearConversion(t *testing.T) {
	m := &Metadata{
		Conversion: &ConversionRecord{Tool: "pdf"},
		Chunking:   []ChunkingRecord{{Chunker: "x", ChunkerVersion: "1"}},
		Status:     StatusChunked,
	}
	m.ClearConversion()
	assert.Nil(t, m.Conversion)
	assert.Empty(t, m.Chunking)
	assert.Equal(t, StatusUploaded, m.Status)
}

func TestSizeInMB(t *testing.T) {
	assert.Equal(t, 1.0, SizeInMB(1024*1024))
	assert.Equal(t, 0.5, SizeInMB(512*1024))
	assert.Equal(t, 0.0, SizeInMB(0))
}

func TestMetadata_LatestChunking(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := &Metadata{Chunking: []ChunkingRecord{
		{Chunker: "sentence_v1", ChunkerVersion: "1.0", CreatedAt: t0},
		{Chunker: "sentence_v1", ChunkerVersion: "1.1", CreatedAt: t0.Add(time.Hour)},
		{Chunker: "paragraph_v1", ChunkerVersion: "1.0", CreatedAt: t0.Add(2 * time.Hour)},
	}}

	got := m.LatestChunking("sentence_v1")
	require.NotNil(t, got)
	assert.Equal(t, "1.1", got.ChunkerVersion)
	assert.Nil(t, m.LatestChunking("semantic_v1"))
}

func TestSubcatalogPath_Validate(t *testing.T) {
	assert.NoError(t, SubcatalogPath{Catalog: "research", Subcatalog: "papers"}.Validate())
	assert.ErrorIs(t, SubcatalogPath{Catalog: "research"}.Validate(), ErrValidation)
	assert.ErrorIs(t, SubcatalogPath{Catalog: "a/b", Subcatalog: "c"}.Validate(), ErrValidation)
}
