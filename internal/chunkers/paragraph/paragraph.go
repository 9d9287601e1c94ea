// Package paragraph provides a chunking strategy that merges blank-line
// separated paragraphs until a minimum length is reached and more than one
// sentence has been collected.
package paragraph

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docpipe/internal/chunkers/options"
	"github.com/custodia-labs/docpipe/internal/chunkers/sentence"
	"github.com/custodia-labs/docpipe/internal/core/domain"
)

const (
	// Name is the strategy identifier.
	Name = "paragraph_v1"

	// Version is the strategy version.
	Version = "1.0"

	// DefaultMinLength is the minimum chunk length in characters.
	DefaultMinLength = 400
)

// Strategy merges paragraphs into chunks of at least min_length characters
// holding at least two sentences.
type Strategy struct{}

// New creates the paragraph strategy.
func New() *Strategy {
	return &Strategy{}
}

// Name returns the strategy name.
func (s *Strategy) Name() string { return Name }

// Version returns the strategy version.
func (s *Strategy) Version() string { return Version }

// DefaultConfig returns the default configuration.
func (s *Strategy) DefaultConfig() domain.ChunkerConfig {
	return domain.ChunkerConfig{"min_length": DefaultMinLength}
}

// Chunk splits on blank lines and accumulates paragraphs until their
// combined length reaches min_length and they hold more than one sentence.
// A lone single-sentence paragraph is merged forward. The remainder forms
// the last chunk.
func (s *Strategy) Chunk(ctx context.Context, markdown string, cfg domain.ChunkerConfig) (domain.ChunkResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChunkResult{}, err
	}
	minLength, err := options.Int(cfg, "min_length", DefaultMinLength)
	if err != nil {
		return domain.ChunkResult{}, err
	}

	var (
		contents []string
		current   []string
		length    int
		sentences int
	)
	for _, p := range Split(markdown) {
		current = append(current, p)
		length += utf8.RuneCountInString(p)
		sentences += len(sentence.Split(p))
		if length >= minLength && sentences > 1 {
			contents = append(contents, strings.Join(current, "\n\n"))
			current = current[:0]
			length = 0
			sentences = 0
		}
	}
	if len(current) > 0 {
		contents = append(contents, strings.Join(current, "\n\n"))
	}
	return domain.NewChunkResult(contents), nil
}

// Split returns the trimmed, non-empty paragraphs of text.
func Split(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
