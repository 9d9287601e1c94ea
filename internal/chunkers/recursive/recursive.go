// Package recursive provides a chunking strategy backed by the langchaingo
// recursive character splitter.
package recursive

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/custodia-labs/docpipe/internal/chunkers/options"
	"github.com/custodia-labs/docpipe/internal/core/domain"
)

const (
	// Name is the strategy identifier.
	Name = "recursive_v1"

	// Version is the strategy version.
	Version = "1.0"

	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the number of characters shared by neighbours.
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order, coarsest first.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Strategy splits on the coarsest separator that keeps chunks under
// chunk_size and then merges neighbours with chunk_overlap.
type Strategy struct{}

// New creates the recursive strategy.
func New() *Strategy {
	return &Strategy{}
}

// Name returns the strategy name.
func (s *Strategy) Name() string { return Name }

// Version returns the strategy version.
func (s *Strategy) Version() string { return Version }

// DefaultConfig returns the default configuration.
func (s *Strategy) DefaultConfig() domain.ChunkerConfig {
	seps := make([]any, len(DefaultSeparators))
	for i, sep := range DefaultSeparators {
		seps[i] = sep
	}
	return domain.ChunkerConfig{
		"chunk_size":    DefaultChunkSize,
		"chunk_overlap": DefaultChunkOverlap,
		"separators":    seps,
	}
}

// Chunk runs the splitter and drops blank pieces.
func (s *Strategy) Chunk(ctx context.Context, markdown string, cfg domain.ChunkerConfig) (domain.ChunkResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChunkResult{}, err
	}
	size, err := options.PositiveInt(cfg, "chunk_size", DefaultChunkSize)
	if err != nil {
		return domain.ChunkResult{}, err
	}
	overlap, err := options.Int(cfg, "chunk_overlap", DefaultChunkOverlap)
	if err != nil {
		return domain.ChunkResult{}, err
	}
	if overlap < 0 || overlap >= size {
		return domain.ChunkResult{}, fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", domain.ErrInvalidInput, overlap)
	}
	separators, err := options.Strings(cfg, "separators", DefaultSeparators)
	if err != nil {
		return domain.ChunkResult{}, err
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(separators),
	)
	pieces, err := splitter.SplitText(markdown)
	if err != nil {
		return domain.ChunkResult{}, fmt.Errorf("split text: %w", err)
	}

	contents := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if p = strings.TrimSpace(p); p != "" {
			contents = append(contents, p)
		}
	}
	return domain.NewChunkResult(contents), nil
}
