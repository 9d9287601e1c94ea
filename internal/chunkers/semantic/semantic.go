// Package semantic provides a chunking strategy that starts a new chunk
// where the embedding distance between adjacent sentences peaks.
package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/docpipe/internal/chunkers/options"
	"github.com/custodia-labs/docpipe/internal/chunkers/sentence"
	"github.com/custodia-labs/docpipe/internal/core/domain"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

const (
	// Name is the strategy identifier.
	Name = "semantic_v1"

	// Version is the strategy version.
	Version = "1.0"

	// DefaultThresholdPercentile selects the breakpoint distance.
	DefaultThresholdPercentile = 95.0

	// DefaultBatchSize is the number of sentences per embedding request.
	DefaultBatchSize = 100
)

// Strategy groups sentences by embedding similarity.
type Strategy struct {
	embedder driven.EmbeddingService
}

// New creates the semantic strategy. A nil embedder is allowed; Chunk then
// fails with domain.ErrEmbeddingUnavailable.
func New(embedder driven.EmbeddingService) *Strategy {
	return &Strategy{embedder: embedder}
}

// Name returns the strategy name.
func (s *Strategy) Name() string { return Name }

// Version returns the strategy version.
func (s *Strategy) Version() string { return Version }

// DefaultConfig returns the default configuration. The embedding model is
// part of it so that switching models changes the run fingerprint.
func (s *Strategy) DefaultConfig() domain.ChunkerConfig {
	cfg := domain.ChunkerConfig{
		"threshold_percentile": DefaultThresholdPercentile,
		"batch_size":           DefaultBatchSize,
	}
	if s.embedder != nil {
		cfg["model"] = s.embedder.ModelName()
	}
	return cfg
}

// Chunk embeds every sentence, computes cosine distances between neighbours
// and breaks wherever the distance exceeds the configured percentile.
func (s *Strategy) Chunk(ctx context.Context, markdown string, cfg domain.ChunkerConfig) (domain.ChunkResult, error) {
	if s.embedder == nil {
		return domain.ChunkResult{}, fmt.Errorf("%w: %s requires an embedding provider", domain.ErrEmbeddingUnavailable, Name)
	}
	percentile, err := options.Float(cfg, "threshold_percentile", DefaultThresholdPercentile)
	if err != nil {
		return domain.ChunkResult{}, err
	}
	if percentile < 0 || percentile > 100 {
		return domain.ChunkResult{}, fmt.Errorf("%w: threshold_percentile must be in [0, 100], got %v", domain.ErrInvalidInput, percentile)
	}
	batchSize, err := options.PositiveInt(cfg, "batch_size", DefaultBatchSize)
	if err != nil {
		return domain.ChunkResult{}, err
	}

	sentences := sentence.Split(markdown)
	if len(sentences) <= 1 {
		return domain.NewChunkResult(sentences), nil
	}

	vectors, err := s.embed(ctx, sentences, batchSize)
	if err != nil {
		return domain.ChunkResult{}, err
	}

	distances := make([]float64, len(vectors)-1)
	for i := range distances {
		distances[i] = 1 - cosine(vectors[i], vectors[i+1])
	}
	threshold := Percentile(distances, percentile)

	var contents []string
	current := []string{sentences[0]}
	for i, d := range distances {
		if d > threshold {
			contents = append(contents, strings.Join(current, " "))
			current = nil
		}
		current = append(current, sentences[i+1])
	}
	contents = append(contents, strings.Join(current, " "))
	return domain.NewChunkResult(contents), nil
}

func (s *Strategy) embed(ctx context.Context, sentences []string, batchSize int) ([][]float32, error) {
	vectors := make([][]float32, 0, len(sentences))
	for i := 0; i < len(sentences); i += batchSize {
		batch := sentences[i:min(i+batchSize, len(sentences))]
		out, err := s.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: embed sentences: %w", domain.ErrEmbeddingUnavailable, err)
		}
		if len(out) != len(batch) {
			return nil, fmt.Errorf("%w: embedder returned %d vectors for %d sentences",
				domain.ErrEmbeddingUnavailable, len(out), len(batch))
		}
		vectors = append(vectors, out...)
	}
	return vectors, nil
}

// cosine returns the cosine similarity of a and b, or 0 when either is zero.
func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Percentile returns the p-th percentile of values using linear
// interpolation between closest ranks.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}
