package intent

import (
	"context"
	"errors"
	"time"
)

// RetryConfig controls retries of a wrapped Classifier.
type RetryConfig struct {
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles per attempt.
	Backoff     time.Duration
	ShouldRetry func(error) bool
}

// WithRetry wraps next with error-only retries.
func WithRetry(next Classifier, cfg RetryConfig) Classifier {
	if next == nil {
		return nil
	}
	return &retryClassifier{next: next, cfg: cfg}
}

type retryClassifier struct {
	next Classifier
	cfg  RetryConfig
}

func (r *retryClassifier) Classify(ctx context.Context, sc SessionContext, raw string) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}

	attempts := normalizedAttempts(r.cfg.MaxAttempts)
	delay := r.cfg.Backoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		c, err := r.next.Classify(ctx, sc, raw)
		if err == nil {
			return c, nil
		}
		lastErr = err
		if attempt == attempts || !shouldRetry(ctx, r.cfg, err) {
			break
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Classification{}, ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}
	}
	return Classification{}, lastErr
}

func normalizedAttempts(maxAttempts int) int {
	if maxAttempts < 1 {
		return 1
	}
	return maxAttempts
}

func shouldRetry(ctx context.Context, cfg RetryConfig, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if cfg.ShouldRetry == nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return cfg.ShouldRetry(err)
}
