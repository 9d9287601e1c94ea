package embedding

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docpipe/internal/core/ports/driven"
)

// Ensure RateLimited implements the interface.
var _ driven.EmbeddingService = (*RateLimited)(nil)

// Default rate limiting values, conservative enough for a local Ollama.
const (
	DefaultRequestsPerSecond = 5.0
	DefaultBurst             = 5
	defaultBackoff           = 30 * time.Second
)

// RateLimitConfig configures the token bucket in front of an embedder.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// RateLimited throttles calls to an underlying EmbeddingService.
// Every Embed, EmbedBatch and Ping call takes one token.
type RateLimited struct {
	next    driven.EmbeddingService
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimited wraps next with a token bucket limiter.
func NewRateLimited(next driven.EmbeddingService, cfg RateLimitConfig) *RateLimited {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// Wait blocks until a request is allowed or ctx is done.
func (r *RateLimited) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return r.limiter.Wait(ctx)
}

// Backoff pauses all callers for d. Zero or negative means the default.
func (r *RateLimited) Backoff(d time.Duration) {
	if d <= 0 {
		d = defaultBackoff
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAt = time.Now().Add(d)
}

// Embed generates a vector embedding for the given text.
func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Embed(ctx, text)
}

// EmbedBatch generates embeddings for multiple texts, in input order.
func (r *RateLimited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.EmbedBatch(ctx, texts)
}

// ModelName returns the wrapped service's model.
func (r *RateLimited) ModelName() string {
	return r.next.ModelName()
}

// Ping validates the wrapped service.
func (r *RateLimited) Ping(ctx context.Context) error {
	if err := r.Wait(ctx); err != nil {
		return err
	}
	return r.next.Ping(ctx)
}

// Close releases the wrapped service.
func (r *RateLimited) Close() error {
	return r.next.Close()
}
