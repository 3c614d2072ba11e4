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

// Race runs every requestor in rs concurrently and completes with the
// first success. Every other requestor is cancelled with a
// reason.KindLoserCancel reason, which is never surfaced to Race's own
// receiver. If every requestor fails, Race fails with the last failure
// observed. An empty rs is a configuration error (ErrEmptyRace): racing
// nothing has no well-defined winner.
func Race[M, V any](rs []requestor.Requestor[M, V], opts ...RaceOption[M, V]) requestor.Requestor[M, V] {
	cfg := raceConfig[M, V]{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(receiver requestor.Receiver[V], message M) requestor.Cancellor {
		if err := requestor.ValidateReceiver[V](receiver); err != nil {
			return nil // no receiver to deliver a configuration Reason to.
		}
		fin := compose.NewFinisher(receiver)

		if len(rs) == 0 {
			fin.Finish(result.Err[V](reason.Configuration(reason.FactoryRace, ErrEmptyRace.Error(), nil, ErrEmptyRace)))
			return nil
		}
		if err := requestor.ValidateShape(rs); err != nil {
			fin.Finish(result.Err[V](reason.Configuration(reason.FactoryRace, err.Error(), nil, ErrInvalidRequestor)))
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
				gate.Fire(reason.Loser(reason.FactoryRace))
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
			rsn := reason.Timeout(reason.FactoryRace, cfg.timeLimit.Milliseconds())
			gate.Fire(rsn)
			fin.Finish(result.Err[V](rsn))
		}

		cancelFn, err := engine.Run[M, V](
			run,
			reason.FactoryRace,
			rs,
			message,
			false,
			action,
			timeoutFn,
			engine.Config{TimeLimit: cfg.timeLimit, Throttle: cfg.throttle, Metrics: Metrics},
			Observer,
		)
		if err != nil {
			fin.Finish(result.Err[V](reason.Configuration(reason.FactoryRace, err.Error(), nil, err)))
			return nil
		}
		gate.Set(cancelFn)

		return func(r *reason.Reason) {
			if fin.Done() {
				return
			}
			gate.Fire(r)
			if r == nil {
				r = reason.Cancelled(reason.FactoryRace, "")
			}
			fin.Finish(result.Err[V](r))
		}
	}
}
