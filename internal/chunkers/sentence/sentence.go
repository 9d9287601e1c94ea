// Package sentence provides a chunking strategy that groups a fixed number
// of sentences per chunk.
package sentence

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/docpipe/internal/chunkers/options"
	"github.com/custodia-labs/docpipe/internal/core/domain"
)

const (
	// Name is the strategy identifier.
	Name = "sentence_v1"

	// Version is the strategy version.
	Version = "1.0"

	// DefaultSentencesPerChunk is used when sentences_per_chunk is absent.
	DefaultSentencesPerChunk = 8
)

// Strategy splits text after sentence terminators and groups the sentences.
type Strategy struct{}

// New creates the sentence strategy.
func New() *Strategy {
	return &Strategy{}
}

// Name returns the strategy name.
func (s *Strategy) Name() string { return Name }

// Version returns the strategy version.
func (s *Strategy) Version() string { return Version }

// DefaultConfig returns the default configuration.
func (s *Strategy) DefaultConfig() domain.ChunkerConfig {
	return domain.ChunkerConfig{"sentences_per_chunk": DefaultSentencesPerChunk}
}

// Chunk groups sentences_per_chunk sentences into each chunk, joined by a space.
func (s *Strategy) Chunk(ctx context.Context, markdown string, cfg domain.ChunkerConfig) (domain.ChunkResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChunkResult{}, err
	}
	perChunk, err := options.PositiveInt(cfg, "sentences_per_chunk", DefaultSentencesPerChunk)
	if err != nil {
		return domain.ChunkResult{}, err
	}

	sentences := Split(markdown)
	contents := make([]string, 0, len(sentences)/perChunk+1)
	for i := 0; i < len(sentences); i += perChunk {
		end := min(i+perChunk, len(sentences))
		contents = append(contents, strings.Join(sentences[i:end], " "))
	}
	return domain.NewChunkResult(contents), nil
}

// Split breaks text at whitespace that follows '.', '!' or '?'.
// Sentences are trimmed and empty ones dropped.
func Split(text string) []string {
	var sentences []string
	emit := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}

	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next, _ := utf8.DecodeRuneInString(text[i:])
		if i >= len(text) || !unicode.IsSpace(next) {
			continue
		}
		emit(text[start:i])
		for i < len(text) {
			ws, n := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(ws) {
				break
			}
			i += n
		}
		start = i
	}
	emit(text[start:])
	return sentences
}
