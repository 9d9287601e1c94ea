// Package ollama builds an embedding service backed by a local Ollama server.
package ollama

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/custodia-labs/docpipe/internal/adapters/driven/embedding"
)

// Default configuration values.
const (
	ProviderName   = "ollama"
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "nomic-embed-text"
)

// Config holds configuration for the Ollama embedding service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model to use (default: nomic-embed-text).
	Model string

	// BatchSize caps texts per request; zero keeps the langchaingo default.
	BatchSize int
}

// NewEmbeddingService creates a new Ollama embedding service.
// No request is made until the service is used.
func NewEmbeddingService(cfg Config) (*embedding.Service, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: create client: %w", err)
	}

	var opts []embeddings.Option
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(llm, opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama: create embedder: %w", err)
	}
	return embedding.NewService(embedder, ProviderName, cfg.Model)
}
