package auth

import (
	"context"
	"time"
)

// AwaitWithTimeout runs fn and waits at most timeout for it to return.
// fn receives a context that is cancelled when the wait ends, but it is not
// required to honour it: a call that ignores cancellation keeps running in
// its goroutine and its late result is dropped. A non positive timeout only
// bounds the wait by ctx.
func AwaitWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if ctx == nil {
		ctx = context.Background()
	}

	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type result struct {
		val T
		err error
	}

	done := make(chan result, 1)
	go func() {
		val, err := fn(waitCtx)
		done <- result{val: val, err: err}
	}()

	select {
	case res := <-done:
		return res.val, res.err
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, wrapError(ErrTimeout, waitCtx.Err(), map[string]any{
			"timeout": timeout.String(),
		})
	}
}

// awaitErr is AwaitWithTimeout for calls that only return an error
func awaitErr(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	_, err := AwaitWithTimeout(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
