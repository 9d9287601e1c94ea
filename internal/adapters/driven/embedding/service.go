// Package embedding adapts langchaingo embedders to the EmbeddingService port.
//
// Provider packages (ollama, openai) build the langchaingo client; this
// package owns the shared behaviour: batch ordering, ping and rate limiting.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

// Ensure Service implements the interface.
var _ driven.EmbeddingService = (*Service)(nil)

// pingText is embedded by Ping to prove the model is loaded and reachable.
const pingText = "ping"

// Service generates embeddings through a langchaingo embedder.
type Service struct {
	embedder embeddings.Embedder
	provider string
	model    string
}

// NewService wraps an embedder. provider and model are informational and
// surface in ModelName and error messages.
func NewService(embedder embeddings.Embedder, provider, model string) (*Service, error) {
	if embedder == nil {
		return nil, errors.New("embedding: embedder is required")
	}
	return &Service{embedder: embedder, provider: provider, model: model}, nil
}

// Embed generates a vector embedding for the given text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%s: embed: %w", s.provider, err)
	}
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts, in input order.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%s: embed batch: %w", s.provider, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%s: embed batch: got %d vectors for %d texts", s.provider, len(vecs), len(texts))
	}
	return vecs, nil
}

// ModelName returns the name of the embedding model being used.
func (s *Service) ModelName() string {
	return s.model
}

// Provider returns the provider the service talks to.
func (s *Service) Provider() string {
	return s.provider
}

// Ping embeds a short probe text.
func (s *Service) Ping(ctx context.Context) error {
	vec, err := s.embedder.EmbedQuery(ctx, pingText)
	if err != nil {
		return fmt.Errorf("%s: ping failed: %w", s.provider, err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("%s: ping returned an empty vector", s.provider)
	}
	return nil
}

// Close releases resources.
func (s *Service) Close() error {
	return nil
}
