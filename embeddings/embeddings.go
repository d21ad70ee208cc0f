// Package embeddings turns text into fixed-dimension vectors via an external
// embedding model.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fasterchat/ragcore/config"
)

// ErrUnavailable marks an embedding call that failed after the configured
// retries were exhausted. Ingestion maps it to a failed document; retrieval
// degrades to the no-context generative path.
var ErrUnavailable = errors.New("embedding service unavailable")

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Provider  string
	Model     string
	Dimension int

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Timeout bounds every embedding HTTP call. Zero falls back to
	// defaultRequestTimeout; external calls are never unbounded.
	Timeout time.Duration
}

const defaultRequestTimeout = 30 * time.Second

func requestTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultRequestTimeout
	}
	return d
}

// NewEmbedder builds the configured provider wrapped with bounded
// exponential-backoff retries.
func NewEmbedder(cfg config.Config) (Embedder, error) {
	opts := Options{
		Provider:      cfg.Embeddings.Provider,
		Model:         cfg.Embeddings.Model,
		Dimension:     cfg.Embeddings.Dimension,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		Timeout:       cfg.RequestTimeout,
	}

	var inner Embedder
	switch opts.Provider {
	case config.ProviderOllama:
		inner = NewOllamaEmbedder(opts)
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		inner = NewOpenAIEmbedder(opts)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", opts.Provider)
	}

	return NewRetrying(inner, cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoff), nil
}
