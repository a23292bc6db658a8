package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicySucceedsEventually(t *testing.T) {
	calls := 0
	err := RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyExhaustsBudget(t *testing.T) {
	calls := 0
	failure := errors.New("down")
	err := RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}.Do(context.Background(), func() error {
		calls++
		return failure
	})
	require.ErrorIs(t, err, failure)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryPolicy{MaxAttempts: 5, Backoff: time.Hour}.Do(ctx, func() error {
		calls++
		return errors.New("nope")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := RetryPolicy{}.Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestComposeInstructions(t *testing.T) {
	out := ComposeInstructions("Book a dentist appointment for Tuesday.")
	assert.Contains(t, out, "Book a dentist appointment for Tuesday.")
	assert.Contains(t, out, EndCallMarker)
}

func TestComposeInstructionsEmptyObjective(t *testing.T) {
	out := ComposeInstructions("   ")
	assert.Contains(t, out, "test call")
}
