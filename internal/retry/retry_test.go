package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retryableErr struct{ msg string }

func (e retryableErr) Error() string   { return e.msg }
func (e retryableErr) Retryable() bool { return true }

func TestDo_SucceedsAfterRetries(t *testing.T) {
	policy := Policy{MaxRetries: 3, BaseDelay: time.Millisecond, Multiplier: 2, Jitter: 0}
	attempts := 0
	err := Do(context.Background(), policy, IsRetryable, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return retryableErr{"transient"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	policy := Policy{MaxRetries: 3, BaseDelay: time.Millisecond, Multiplier: 2, Jitter: 0}
	attempts := 0
	err := Do(context.Background(), policy, IsRetryable, func(ctx context.Context) error {
		attempts++
		return errors.New("permanent")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	policy := Policy{MaxRetries: 2, BaseDelay: time.Millisecond, Multiplier: 2, Jitter: 0}
	attempts := 0
	err := Do(context.Background(), policy, IsRetryable, func(ctx context.Context) error {
		attempts++
		return retryableErr{"always fails"}
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	policy := Policy{MaxRetries: 5, BaseDelay: 50 * time.Millisecond, Multiplier: 2, Jitter: 0}
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, policy, IsRetryable, func(ctx context.Context) error {
		attempts++
		return retryableErr{"transient"}
	})
	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 2)
}

func TestDelayAt_GrowsExponentially(t *testing.T) {
	policy := Policy{BaseDelay: time.Second, Multiplier: 2, Jitter: 0}
	assert.Equal(t, time.Second, delayAt(policy, 1))
	assert.Equal(t, 2*time.Second, delayAt(policy, 2))
	assert.Equal(t, 4*time.Second, delayAt(policy, 3))
}

func TestDelayAt_JitterStaysInBand(t *testing.T) {
	policy := Policy{BaseDelay: time.Second, Multiplier: 2, Jitter: 0.2}
	for i := 0; i < 50; i++ {
		d := delayAt(policy, 1)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}
