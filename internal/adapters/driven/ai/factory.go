// Package ai creates the optional AI collaborators from configuration.
package ai

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/docpipe/internal/adapters/driven/embedding"
	ollamaembed "github.com/custodia-labs/docpipe/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docpipe/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/docpipe/internal/config"
	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
	"github.com/custodia-labs/docpipe/internal/logger"
)

// CreateEmbeddingService creates the embedding service selected by cfg,
// wrapped in a rate limiter. Returns nil when the provider is "none".
func CreateEmbeddingService(cfg config.EmbeddingConfig) (driven.EmbeddingService, error) {
	var (
		svc *embedding.Service
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", config.ProviderNone:
		return nil, nil
	case config.ProviderOllama:
		svc, err = ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	case config.ProviderOpenAI:
		svc, err = openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("embedding provider %s, model %s", svc.Provider(), svc.ModelName())
	return embedding.NewRateLimited(svc, embedding.RateLimitConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}), nil
}
