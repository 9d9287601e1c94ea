package chunkers

import (
	"github.com/custodia-labs/docpipe/internal/chunkers/fixed"
	"github.com/custodia-labs/docpipe/internal/chunkers/hierarchy"
	"github.com/custodia-labs/docpipe/internal/chunkers/paragraph"
	"github.com/custodia-labs/docpipe/internal/chunkers/recursive"
	"github.com/custodia-labs/docpipe/internal/chunkers/semantic"
	"github.com/custodia-labs/docpipe/internal/chunkers/sentence"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

// Defaults returns the registry of built-in strategies.
// embedder may be nil, in which case semantic_v1 is still listed but fails
// when run.
func Defaults(embedder driven.EmbeddingService) (*Registry, error) {
	return NewRegistry(
		sentence.New(),
		paragraph.New(),
		recursive.New(),
		hierarchy.New(),
		semantic.New(embedder),
		fixed.New(),
	)
}
