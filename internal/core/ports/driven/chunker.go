package driven

import (
	"context"

	"github.com/custodia-labs/docpipe/internal/core/domain"
)

// ChunkStrategy splits Markdown into ordered chunks.
// Output must be a pure function of (markdown, name, version, config).
type ChunkStrategy interface {
	// Name is the strategy identifier used in filenames and metadata.
	Name() string

	// Version is bumped whenever output for the same input would change.
	Version() string

	// DefaultConfig returns the configuration used for absent keys.
	DefaultConfig() domain.ChunkerConfig

	// Chunk splits markdown. cfg already has defaults applied.
	Chunk(ctx context.Context, markdown string, cfg domain.ChunkerConfig) (domain.ChunkResult, error)
}
