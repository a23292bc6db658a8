package realtime

import (
	"context"
	"time"
)

// RetryPolicy bounds connection attempts. Attempts are separated by a fixed
// backoff; there is no jitter because at most one connection per call is ever
// retrying.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy matches the service's known reconnect tolerance.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Second}
}

// Do runs attempt until it succeeds, the attempt budget is spent, or the
// context is cancelled. The last error is returned on failure.
func (p RetryPolicy) Do(ctx context.Context, attempt func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(p.Backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = attempt(); err == nil {
			return nil
		}
	}
	return err
}
