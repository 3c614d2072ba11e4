// Package requestor defines the contract the engine drives: a callable
// that performs one unit of work and reports its outcome through a
// one-shot receiver, optionally returning a cancellor.
package requestor

import (
	"context"
	"fmt"

	"github.com/ygrebnov/parsec/reason"
	"github.com/ygrebnov/parsec/result"
)

// Receiver is the one-shot continuation a Requestor must invoke exactly
// once with the outcome of its work.
type Receiver[V any] func(result.Result[V])

// Cancellor is an optional, idempotent callable a Requestor may return.
// Calling it attempts to abort in-flight work; it is safe to call after
// completion (no-op) and safe to call multiple times. A nil Cancellor
// means the requestor cannot be cancelled.
type Cancellor func(r *reason.Reason)

// Requestor performs exactly one unit of work, synchronous or
// asynchronous, and reports its outcome through receiver exactly once.
// It may return a Cancellor; returning nil means the work cannot be
// cancelled once started.
//
// A Requestor must never call receiver after having already called it.
// If it panics before calling receiver, the caller (the engine) treats
// the panic as a failure completion.
type Requestor[M, V any] func(receiver Receiver[V], message M) Cancellor

// FromFunc adapts a plain Go function into a Requestor. The function
// receives a context.Context derived from ctx that is cancelled when the
// returned Cancellor is invoked, giving fn a standard way to observe
// cancellation without the engine knowing anything about contexts.
func FromFunc[M, V any](ctx context.Context, fn func(context.Context, M) (V, error)) Requestor[M, V] {
	return func(receiver Receiver[V], message M) Cancellor {
		childCtx, cancel := context.WithCancel(ctx)

		go func() {
			defer cancel()
			v, err := fn(childCtx, message)
			if err != nil {
				receiver(result.Err[V](reason.New(reason.FactoryEngine, reason.KindChildFailure, "requestor function returned an error", nil, err)))
				return
			}
			receiver(result.Ok(v))
		}()

		return func(*reason.Reason) { cancel() }
	}
}

// FromValue adapts a plain Go function that cannot fail into a
// Requestor.
func FromValue[M, V any](ctx context.Context, fn func(context.Context, M) V) Requestor[M, V] {
	return FromFunc[M, V](ctx, func(c context.Context, m M) (V, error) {
		return fn(c, m), nil
	})
}

// FromMapper adapts a pure, non-blocking, non-failing function into a
// synchronous Requestor. It invokes receiver before returning, which is
// the requestor shape sequence's "left-fold of pure functions" law
// exercises.
func FromMapper[M, V any](fn func(M) V) Requestor[M, V] {
	return func(receiver Receiver[V], message M) Cancellor {
		receiver(result.Ok(fn(message)))
		return nil
	}
}

// ErrInvalidArity is wrapped into the error ValidateShape returns for a
// nil requestor and ValidateReceiver returns for a nil receiver.
var ErrInvalidArity = fmt.Errorf("requestor: value is not a callable of the expected requestor shape")

// ValidateShape reports whether every element of rs is a non-nil
// Requestor. The engine and operators call this up front so malformed
// input fails synchronously, before any receiver is invoked, per the
// configuration-error contract.
func ValidateShape[M, V any](rs []Requestor[M, V]) error {
	for i, r := range rs {
		if r == nil {
			return fmt.Errorf("requestor at index %d is nil: %w", i, ErrInvalidArity)
		}
	}
	return nil
}

// ValidateReceiver reports whether receiver is usable. A nil receiver is
// a configuration error at operator invocation time.
func ValidateReceiver[V any](receiver Receiver[V]) error {
	if receiver == nil {
		return fmt.Errorf("receiver must not be nil: %w", ErrInvalidArity)
	}
	return nil
}
