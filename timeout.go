package htmlpdf

import (
	"context"
	"time"
)

// unwindGrace bounds how long an expired guard waits for teardown and op to
// finish before returning. Work still running after that completes in the
// background and its result is discarded.
const unwindGrace = 500 * time.Millisecond

// guard races op against an optional deadline. A nil timeout leaves op
// bounded only by ctx; a zero timeout fails immediately.
//
// When the deadline or ctx expires first, op's context is cancelled and
// teardown is called. guard then waits up to unwindGrace for op to unwind,
// so an op that ignores cancellation cannot delay the error. Deadline
// expiry is reported as ErrOperationTimeout; ctx expiry as ctx.Err().
func guard[T any](ctx context.Context, timeout *time.Duration, teardown func(), op func(context.Context) (T, error)) (T, error) {
	var zero T

	if timeout != nil && *timeout <= 0 {
		teardown()
		return zero, ErrOperationTimeout
	}
	if err := ctx.Err(); err != nil {
		teardown()
		return zero, err
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var deadline <-chan time.Time
	if timeout != nil {
		timer := time.NewTimer(*timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := op(opCtx)
		done <- result{val: v, err: err}
	}()

	var err error
	select {
	case r := <-done:
		return r.val, r.err
	case <-deadline:
		err = ErrOperationTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	cancel()
	unwound := make(chan struct{})
	go func() {
		defer close(unwound)
		teardown()
		<-done // a result produced after expiry is discarded
	}()

	grace := time.NewTimer(unwindGrace)
	defer grace.Stop()
	select {
	case <-unwound:
	case <-grace.C:
	}
	return zero, err
}
