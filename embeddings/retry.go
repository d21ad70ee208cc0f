package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retrying retries a wrapped embedder with exponential backoff. After the
// attempt budget is spent the last error is reported as ErrUnavailable so
// callers can branch on degradation instead of parsing provider errors.
type Retrying struct {
	inner       Embedder
	maxAttempts int
	initial     time.Duration
}

func NewRetrying(inner Embedder, maxAttempts int, initial time.Duration) *Retrying {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	return &Retrying{inner: inner, maxAttempts: maxAttempts, initial: initial}
}

func (r *Retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.initial

	operation := func() error {
		vectors, err := r.inner.Embed(ctx, texts)
		if err != nil {
			return err
		}
		result = vectors
		return nil
	}

	err := backoff.Retry(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.maxAttempts-1)), ctx),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	return result, nil
}

var _ Embedder = (*Retrying)(nil)
