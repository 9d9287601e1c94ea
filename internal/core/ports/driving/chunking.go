package driving

import (
	"context"

	"github.com/custodia-labs/docpipe/internal/core/domain"
)

// ChunkRequest selects a chunker run for one document.
type ChunkRequest struct {
	DocumentID string

	// Chunker is the strategy name.
	Chunker string

	// Version selects a strategy version. Empty selects the latest.
	Version string

	// Config overrides the strategy defaults.
	Config domain.ChunkerConfig

	// Force regenerates even when an identical run exists.
	Force bool
}

// ChunkRunResult describes the outcome of a chunking run.
type ChunkRunResult struct {
	Record domain.ChunkingRecord

	// Skipped is set when an identical run already existed.
	Skipped bool

	// Archived is set when a previous chunked file was snapshotted first.
	Archived *domain.ArchiveEntry
}

// ChunkerInfo describes a registered strategy.
type ChunkerInfo struct {
	Name          string
	Version       string
	DefaultConfig domain.ChunkerConfig
}

// ChunkingService runs chunking strategies against converted Markdown.
type ChunkingService interface {
	// Run executes one strategy and records it in metadata.
	Run(ctx context.Context, req ChunkRequest) (*ChunkRunResult, error)

	// DeleteRun snapshots the document and removes one chunked file.
	DeleteRun(ctx context.Context, documentID, chunker, version string) error

	// Chunkers lists the registered strategies.
	Chunkers() []ChunkerInfo
}
