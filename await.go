package parsec

import (
	"context"

	"github.com/ygrebnov/parsec/reason"
	"github.com/ygrebnov/parsec/requestor"
	"github.com/ygrebnov/parsec/result"
)

// Await drives r to completion and blocks until it finishes or ctx is
// done, the synchronous counterpart to the callback-driven Requestor
// contract. It owns r's lifecycle the way RunAll owns a batch of tasks
// in the library this package grew from: invoke, wait, and if ctx is
// cancelled first, fire the cancellor and report ctx's error.
func Await[M, V any](ctx context.Context, r requestor.Requestor[M, V], message M) (V, error) {
	type outcome struct {
		value V
		err   error
	}

	done := make(chan outcome, 1)

	cancellor := r(func(res result.Result[V]) {
		v, ok := res.Value()
		if ok {
			done <- outcome{value: v}
			return
		}
		rsn, _ := res.Reason()
		done <- outcome{err: rsn}
	}, message)

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		if cancellor != nil {
			cancellor(reason.Cancelled(reason.FactoryEngine, ctx.Err().Error()))
		}
		var zero V
		return zero, ctx.Err()
	}
}
