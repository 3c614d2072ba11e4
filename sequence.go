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

// Sequence runs rs strictly one at a time: the first requestor receives
// initial, and every subsequent requestor receives the value its
// predecessor produced, like a left-fold over Requestor[T, T]. It fails
// as soon as any requestor fails, without launching the remainder. An
// empty rs succeeds immediately with initial.
func Sequence[T any](rs []requestor.Requestor[T, T], opts ...SequenceOption[T]) requestor.Requestor[T, T] {
	cfg := sequenceConfig[T]{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(receiver requestor.Receiver[T], message T) requestor.Cancellor {
		if err := requestor.ValidateReceiver[T](receiver); err != nil {
			return nil // no receiver to deliver a configuration Reason to.
		}
		fin := compose.NewFinisher(receiver)

		if len(rs) == 0 {
			fin.Finish(result.Ok(message))
			return nil
		}
		if err := requestor.ValidateShape(rs); err != nil {
			fin.Finish(result.Err[T](reason.Configuration(reason.FactorySequence, err.Error(), nil, ErrInvalidRequestor)))
			return nil
		}

		run := uuid.New()
		gate := compose.NewCancelGate()
		var mu sync.Mutex
		last := message
		remaining := len(rs)

		action := func(cr engine.ChildResult[T]) {
			if fin.Done() {
				return
			}
			if !cr.HasValue {
				rsn := cr.Reason
				gate.Fire(rsn)
				fin.Finish(result.Err[T](rsn))
				return
			}

			mu.Lock()
			last = cr.Value
			remaining--
			done := remaining == 0
			out := last
			mu.Unlock()

			if done {
				gate.Fire(nil)
				fin.Finish(result.Ok(out))
			}
		}

		timeoutFn := func() {
			if fin.Done() {
				return
			}
			rsn := reason.Timeout(reason.FactorySequence, cfg.timeLimit.Milliseconds())
			gate.Fire(rsn)
			fin.Finish(result.Err[T](rsn))
		}

		cancelFn, err := engine.Run[T, T](
			run,
			reason.FactorySequence,
			rs,
			message,
			true,
			action,
			timeoutFn,
			engine.Config{TimeLimit: cfg.timeLimit, Throttle: 1, Metrics: Metrics},
			Observer,
		)
		if err != nil {
			fin.Finish(result.Err[T](reason.Configuration(reason.FactorySequence, err.Error(), nil, err)))
			return nil
		}
		gate.Set(cancelFn)

		return func(r *reason.Reason) {
			if fin.Done() {
				return
			}
			gate.Fire(r)
			if r == nil {
				r = reason.Cancelled(reason.FactorySequence, "")
			}
			fin.Finish(result.Err[T](r))
		}
	}
}
