// Package fixed provides a fixed-size chunking strategy with overlap.
package fixed

import (
	"context"

	"github.com/custodia-labs/docpipe/internal/chunkers/options"
	"github.com/custodia-labs/docpipe/internal/core/domain"
)

const (
	// Name is the strategy identifier.
	Name = "fixed_v1"

	// Version is the strategy version.
	Version = "1.0"

	// DefaultChunkSize is the default number of characters per chunk.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the default number of overlapping characters.
	DefaultChunkOverlap = 200
)

// Strategy cuts text into windows of chunk_size characters that advance by
// chunk_size - overlap.
type Strategy struct {
	chunkSize int
	overlap   int
}

// Option configures the default window.
type Option func(*Strategy)

// WithChunkSize sets the default chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Strategy) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the default overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Strategy) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates the fixed strategy with the given defaults.
func New(opts ...Option) *Strategy {
	s := &Strategy{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.overlap = clampOverlap(s.chunkSize, s.overlap)
	return s
}

// Name returns the strategy name.
func (s *Strategy) Name() string { return Name }

// Version returns the strategy version.
func (s *Strategy) Version() string { return Version }

// DefaultConfig returns the default configuration.
func (s *Strategy) DefaultConfig() domain.ChunkerConfig {
	return domain.ChunkerConfig{
		"chunk_size":    s.chunkSize,
		"chunk_overlap": s.overlap,
	}
}

// Chunk splits markdown into rune windows. Empty input produces no chunks.
func (s *Strategy) Chunk(ctx context.Context, markdown string, cfg domain.ChunkerConfig) (domain.ChunkResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChunkResult{}, err
	}
	size, err := options.PositiveInt(cfg, "chunk_size", s.chunkSize)
	if err != nil {
		return domain.ChunkResult{}, err
	}
	overlap, err := options.Int(cfg, "chunk_overlap", s.overlap)
	if err != nil {
		return domain.ChunkResult{}, err
	}
	overlap = clampOverlap(size, overlap)

	runes := []rune(markdown)
	if len(runes) == 0 {
		return domain.NewChunkResult(nil), nil
	}

	step := size - overlap
	contents := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		contents = append(contents, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return domain.NewChunkResult(contents), nil
}

// clampOverlap keeps the window advancing.
func clampOverlap(size, overlap int) int {
	if overlap < 0 {
		return 0
	}
	if overlap >= size {
		return size / 4
	}
	return overlap
}
