// Package llm calls an external generative model for the expensive answer
// path.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/fasterchat/ragcore/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Timeout bounds every chat completion HTTP call. Zero falls back to
	// defaultRequestTimeout; external calls are never unbounded.
	Timeout time.Duration
}

const defaultRequestTimeout = 60 * time.Second

func requestTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultRequestTimeout
	}
	return d
}

// NewClient builds the configured provider wrapped with bounded
// exponential-backoff retries.
func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		Timeout:       cfg.RequestTimeout,
	}

	var inner Client
	switch opts.Provider {
	case config.ProviderOllama:
		inner = NewOllamaClient(opts)
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		inner = NewOpenAIClient(opts)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}

	return NewRetrying(inner, cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoff), nil
}
