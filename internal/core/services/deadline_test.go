package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallWithTimeout(t *testing.T) {
	t.Run("returns result", func(t *testing.T) {
		v, err := callWithTimeout(context.Background(), time.Second, func(context.Context) (int, error) {
			return 7, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	})

	t.Run("returns error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := callWithTimeout(context.Background(), time.Second, func(context.Context) (int, error) {
			return 0, boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("abandons a call that ignores its context", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		start := time.Now()
		v, err := callWithTimeout(context.Background(), 20*time.Millisecond, func(context.Context) (int, error) {
			<-release
			return 7, nil
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, v)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("parent cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := callWithTimeout(ctx, time.Second, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
