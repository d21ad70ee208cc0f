package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retrying retries a wrapped client with exponential backoff. Context
// cancellation stops the retry loop immediately.
type Retrying struct {
	inner       Client
	maxAttempts int
	initial     time.Duration
}

func NewRetrying(inner Client, maxAttempts int, initial time.Duration) *Retrying {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	return &Retrying{inner: inner, maxAttempts: maxAttempts, initial: initial}
}

func (r *Retrying) Generate(ctx context.Context, messages []Message) (string, error) {
	var result string

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.initial

	operation := func() error {
		answer, err := r.inner.Generate(ctx, messages)
		if err != nil {
			return err
		}
		result = answer
		return nil
	}

	err := backoff.Retry(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.maxAttempts-1)), ctx),
	)
	if err != nil {
		return "", err
	}

	return result, nil
}

var _ Client = (*Retrying)(nil)
