package intent

import (
	"context"
	"errors"
	"testing"
	"time"
)

type flakyClassifier struct {
	failures int
	err      error
	calls    int
}

func (f *flakyClassifier) Classify(context.Context, SessionContext, string) (Classification, error) {
	f.calls++
	if f.calls <= f.failures {
		return Classification{}, f.err
	}
	return Classification{Intent: Confirm, Confidence: 1}, nil
}

func TestWithRetryRecovers(t *testing.T) {
	f := &flakyClassifier{failures: 2, err: errors.New("unavailable")}
	c := WithRetry(f, RetryConfig{MaxAttempts: 3, Backoff: time.Millisecond})

	got, err := c.Classify(context.Background(), SessionContext{}, "yes")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Intent != Confirm || f.calls != 3 {
		t.Fatalf("intent=%s calls=%d", got.Intent, f.calls)
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	boom := errors.New("unavailable")
	f := &flakyClassifier{failures: 10, err: boom}
	c := WithRetry(f, RetryConfig{MaxAttempts: 2})

	_, err := c.Classify(context.Background(), SessionContext{}, "yes")
	if !errors.Is(err, boom) || f.calls != 2 {
		t.Fatalf("err=%v calls=%d", err, f.calls)
	}
}

func TestWithRetrySkipsContextErrors(t *testing.T) {
	f := &flakyClassifier{failures: 10, err: context.DeadlineExceeded}
	c := WithRetry(f, RetryConfig{MaxAttempts: 5})

	_, err := c.Classify(context.Background(), SessionContext{}, "yes")
	if !errors.Is(err, context.DeadlineExceeded) || f.calls != 1 {
		t.Fatalf("err=%v calls=%d", err, f.calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.calls = 0
	if _, err := c.Classify(ctx, SessionContext{}, "yes"); !errors.Is(err, context.Canceled) || f.calls != 0 {
		t.Fatalf("canceled: err=%v calls=%d", err, f.calls)
	}
}
