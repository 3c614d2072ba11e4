package parsec

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ygrebnov/parsec/internal/compose"
	"github.com/ygrebnov/parsec/internal/engine"
	"github.com/ygrebnov/parsec/reason"
	"github.com/ygrebnov/parsec/requestor"
	"github.com/ygrebnov/parsec/result"
)

// Fallback tries rs strictly one at a time, in order, and completes with
// the first success. A requestor's failure moves on to the next one
// rather than failing the composite; Fallback fails only once every
// requestor has failed, with the last failure observed. An empty rs is
// a configuration error (ErrEmptyRace), matching Race's empty-set
// semantics.
//
// Unlike Sequence, Fallback does not thread a value between attempts:
// every attempt receives the same message.
func Fallback[M, V any](rs []requestor.Requestor[M, V], opts ...FallbackOption[M, V]) requestor.Requestor[M, V] {
	cfg := fallbackConfig[M, V]{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(receiver requestor.Receiver[V], message M) requestor.Cancellor {
		if err := requestor.ValidateReceiver[V](receiver); err != nil {
			return nil // no receiver to deliver a configuration Reason to.
		}
		fin := compose.NewFinisher(receiver)

		if len(rs) == 0 {
			fin.Finish(result.Err[V](reason.Configuration(reason.FactoryFallback, ErrEmptyRace.Error(), nil, ErrEmptyRace)))
			return nil
		}
		if err := requestor.ValidateShape(rs); err != nil {
			fin.Finish(result.Err[V](reason.Configuration(reason.FactoryFallback, err.Error(), nil, ErrInvalidRequestor)))
			return nil
		}

		run := uuid.New()
		gate := compose.NewCancelGate()
		var mu sync.Mutex
		var lastFailure *reason.Reason
		remaining := len(rs)

		action := func(cr engine.ChildResult[V]) {
			if fin.Done() {
				return
			}
			if cr.HasValue {
				gate.Fire(nil)
				fin.Finish(result.Ok(cr.Value))
				return
			}

			mu.Lock()
			lastFailure = cr.Reason
			remaining--
			done := remaining == 0
			failure := lastFailure
			mu.Unlock()

			if done {
				gate.Fire(nil)
				fin.Finish(result.Err[V](failure))
			}
		}

		timeoutFn := func() {
			if fin.Done() {
				return
			}
			rsn := reason.Timeout(reason.FactoryFallback, cfg.timeLimit.Milliseconds())
			gate.Fire(rsn)
			fin.Finish(result.Err[V](rsn))
		}

		cancelFn, err := engine.Run[M, V](
			run,
			reason.FactoryFallback,
			rs,
			message,
			false,
			action,
			timeoutFn,
			engine.Config{TimeLimit: cfg.timeLimit, Throttle: 1, Metrics: Metrics},
			Observer,
		)
		if err != nil {
			fin.Finish(result.Err[V](reason.Configuration(reason.FactoryFallback, err.Error(), nil, err)))
			return nil
		}
		gate.Set(cancelFn)

		return func(r *reason.Reason) {
			if fin.Done() {
				return
			}
			gate.Fire(r)
			if r == nil {
				r = reason.Cancelled(reason.FactoryFallback, "")
			}
			fin.Finish(result.Err[V](r))
		}
	}
}
