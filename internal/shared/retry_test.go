package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = RetryPolicy{Attempts: 3, Base: time.Millisecond, Max: 5 * time.Millisecond}

func TestRetry(t *testing.T) {
	t.Run("succeeds after recoverable failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fastPolicy, func(context.Context) error {
			calls++
			if calls < 3 {
				return ErrTransientNetwork
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fastPolicy, func(context.Context) error {
			calls++
			return &RateLimitError{Service: "Tidal", RetryAfter: time.Millisecond}
		})

		assert.ErrorIs(t, err, ErrRateLimited)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry fatal errors", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), fastPolicy, func(context.Context) error {
			calls++
			return ErrAuthentication
		})

		assert.ErrorIs(t, err, ErrAuthentication)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts still calls once", func(t *testing.T) {
		calls := 0
		_ = Retry(context.Background(), RetryPolicy{}, func(context.Context) error {
			calls++
			return ErrTimeout
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("stops waiting when the context ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := RetryPolicy{Attempts: 3, Base: time.Hour}

		err := Retry(ctx, slow, func(context.Context) error {
			cancel()
			return ErrTransientNetwork
		})
		assert.ErrorIs(t, err, ErrTimeout)
	})
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{Attempts: 5, Base: 500 * time.Millisecond, Max: 3 * time.Second}

	assert.Equal(t, 500*time.Millisecond, p.delay(0, ErrTimeout))
	assert.Equal(t, time.Second, p.delay(1, ErrTimeout))
	assert.Equal(t, 2*time.Second, p.delay(2, ErrTimeout))
	assert.Equal(t, 3*time.Second, p.delay(3, ErrTimeout))
	assert.Equal(t, 2*time.Second, p.delay(0, &RateLimitError{RetryAfter: 2 * time.Second}))
	assert.Equal(t, 3*time.Second, p.delay(0, &RateLimitError{RetryAfter: time.Minute}))
}

func TestRateLimitError(t *testing.T) {
	err := error(&RateLimitError{Service: "Discogs", RetryAfter: 2 * time.Second})
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.True(t, IsRecoverable(err))
	assert.Equal(t, "Discogs: rate limited, retry after 2s", err.Error())
}
