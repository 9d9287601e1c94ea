// Package openai builds an embedding service for OpenAI compatible APIs.
package openai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/docpipe/internal/adapters/driven/embedding"
)

// Default configuration values.
const (
	ProviderName   = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"

	// localToken satisfies the client for self-hosted servers without auth.
	localToken = "docpipe-local"
)

// ErrAPIKeyRequired is returned when the hosted API is used without a key.
var ErrAPIKeyRequired = errors.New("openai: api key required")

// Config holds configuration for the OpenAI embedding service.
type Config struct {
	// APIKey is required for the hosted API. Self-hosted endpoints may omit it.
	APIKey string

	// BaseURL overrides the API endpoint (default: https://api.openai.com/v1).
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small).
	Model string
}

// NewEmbeddingService creates a new OpenAI embedding service.
func NewEmbeddingService(cfg Config) (*embedding.Service, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	token := strings.TrimPrefix(cfg.APIKey, "Bearer ")
	if token == "" {
		if strings.TrimRight(cfg.BaseURL, "/") == DefaultBaseURL {
			return nil, ErrAPIKeyRequired
		}
		token = localToken
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("openai: create client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("openai: create embedder: %w", err)
	}
	return embedding.NewService(embedder, ProviderName, cfg.Model)
}
