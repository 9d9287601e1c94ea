package services

import (
	"context"
	"fmt"
	"time"
)

type callResult[T any] struct {
	value T
	err   error
}

// callWithTimeout runs fn with a context bounded by timeout and returns as
// soon as fn finishes or the deadline passes. A collaborator that ignores its
// context keeps running in the background; its late result is discarded.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan callResult[T], 1)
	go func() {
		v, err := fn(cctx)
		done <- callResult[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-cctx.Done():
		var zero T
		return zero, fmt.Errorf("gave up after %s: %w", timeout, cctx.Err())
	}
}
