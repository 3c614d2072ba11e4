package parsec

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ygrebnov/parsec/internal/compose"
	"github.com/ygrebnov/parsec/internal/engine"
	"github.com/ygrebnov/parsec/internal/metrics"
	"github.com/ygrebnov/parsec/internal/observability"
	"github.com/ygrebnov/parsec/reason"
	"github.com/ygrebnov/parsec/requestor"
	"github.com/ygrebnov/parsec/result"
)

// Observer, when non-nil, receives diagnostic events for every composite
// built by this package. It defaults to a no-op and is not part of any
// operator's Option set because it is a cross-cutting, process-wide
// concern rather than a per-call one — set it once at startup the way a
// logger is usually wired.
var Observer observability.Observer = observability.Noop{}

// Metrics, when set to something other than the default no-op provider,
// receives per-child counters and histograms from every composite built
// by this package: launched/completed/failed counts, in-flight gauge,
// and a child-duration histogram. Wire a real metrics.Provider (such as
// internal/metrics.NewBasicProvider, or an adapter over a production
// metrics backend) the same way Observer is wired.
var Metrics metrics.Provider = metrics.NewNoopProvider()

// Parallel runs necessities and cfg's optionals concurrently and
// collects every result. N = len(necessities), M = len(optionals).
//
//   - N == 0 && M == 0: the returned requestor succeeds immediately with
//     an empty result list.
//   - N == 0 && M > 0: optionals become the whole set and the effective
//     TimeOption is forced to TryOptionalsIfTimeRemains.
//   - N > 0 && M == 0: the effective TimeOption is forced to
//     SkipOptionalsIfTimeRemains (vacuously, since there are no
//     optionals).
//   - Otherwise the TimeOption supplied via WithParallelTimeOption (or
//     the default, SkipOptionalsIfTimeRemains) governs.
//
// A failing necessity short-circuits the composite immediately. Results
// are returned in input order regardless of completion order; entries
// for requestors that never completed (e.g. a cancelled optional) carry
// a reason.KindNotCompleted reason.
func Parallel[M, V any](necessities []requestor.Requestor[M, V], opts ...ParallelOption[M, V]) requestor.Requestor[M, []result.Result[V]] {
	cfg := defaultParallelConfig[M, V]()
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(receiver requestor.Receiver[[]result.Result[V]], message M) requestor.Cancellor {
		if err := requestor.ValidateReceiver[[]result.Result[V]](receiver); err != nil {
			return nil // no receiver to deliver a configuration Reason to.
		}

		n, m := len(necessities), len(cfg.optionals)

		if n == 0 && m == 0 {
			receiver(result.Ok[[]result.Result[V]](nil))
			return nil
		}

		timeOption := cfg.timeOption
		switch {
		case n == 0:
			timeOption = TryOptionalsIfTimeRemains
		case m == 0:
			timeOption = SkipOptionalsIfTimeRemains
		case !timeOption.valid():
			fin := compose.NewFinisher(receiver)
			fin.Finish(result.Err[[]result.Result[V]](reason.Configuration(reason.FactoryParallel, "invalid time option", timeOption, ErrInvalidTimeOption)))
			return nil
		}

		if err := requestor.ValidateShape(necessities); err != nil {
			fin := compose.NewFinisher(receiver)
			fin.Finish(result.Err[[]result.Result[V]](reason.Configuration(reason.FactoryParallel, err.Error(), nil, ErrInvalidRequestor)))
			return nil
		}
		if err := requestor.ValidateShape(cfg.optionals); err != nil {
			fin := compose.NewFinisher(receiver)
			fin.Finish(result.Err[[]result.Result[V]](reason.Configuration(reason.FactoryParallel, err.Error(), nil, ErrInvalidRequestor)))
			return nil
		}

		children := make([]requestor.Requestor[M, V], 0, n+m)
		children = append(children, necessities...)
		children = append(children, cfg.optionals...)

		return runParallel(children, n, message, timeOption, cfg.timeLimit, cfg.throttle, receiver)
	}
}

// runParallel drives the shared engine for Parallel. Sequence does not
// go through it; it calls engine.Run directly (see sequence.go).
func runParallel[M, V any](
	children []requestor.Requestor[M, V],
	n int,
	message M,
	timeOption TimeOption,
	timeLimit time.Duration,
	throttle uint,
	receiver requestor.Receiver[[]result.Result[V]],
) requestor.Cancellor {
	total := len(children)
	fin := compose.NewFinisher(receiver)

	results := make([]result.Result[V], total)
	for i := range results {
		results[i] = result.Err[V](reason.NotCompleted(reason.FactoryParallel))
	}

	var mu sync.Mutex
	pending := total
	pendingNecessities := n
	run := uuid.New()
	gate := compose.NewCancelGate()

	snapshot := func() []result.Result[V] {
		out := make([]result.Result[V], total)
		copy(out, results)
		return out
	}

	action := func(cr engine.ChildResult[V]) {
		mu.Lock()
		if fin.Done() {
			mu.Unlock()
			return
		}

		if cr.HasValue {
			results[cr.RequestorIndex] = result.Ok(cr.Value)
		} else {
			results[cr.RequestorIndex] = result.Err[V](cr.Reason)
		}
		pending--
		isNecessity := cr.RequestorIndex < n
		if isNecessity {
			pendingNecessities--
		}

		switch {
		case isNecessity && !cr.HasValue:
			rsn := cr.Reason
			mu.Unlock()
			gate.Fire(rsn)
			fin.Finish(result.Err[[]result.Result[V]](rsn))

		case pending == 0:
			out := snapshot()
			mu.Unlock()
			gate.Fire(nil)
			fin.Finish(result.Ok(out))

		case pendingNecessities == 0 && timeOption == SkipOptionalsIfTimeRemains:
			out := snapshot()
			mu.Unlock()
			gate.Fire(nil)
			fin.Finish(result.Ok(out))

		default:
			mu.Unlock()
		}
	}

	timeoutFn := func() {
		mu.Lock()
		if fin.Done() {
			mu.Unlock()
			return
		}

		limitMillis := timeLimit.Milliseconds()

		switch timeOption {
		case SkipOptionalsIfTimeRemains:
			necessitiesDone := pendingNecessities == 0
			mu.Unlock()
			if necessitiesDone {
				return // already finished via the action path; nothing to do.
			}
			rsn := reason.Timeout(reason.FactoryParallel, limitMillis)
			gate.Fire(rsn)
			fin.Finish(result.Err[[]result.Result[V]](rsn))

		case TryOptionalsIfTimeRemains:
			necessitiesDone := pendingNecessities == 0
			out := snapshot()
			mu.Unlock()
			gate.Fire(reason.Timeout(reason.FactoryParallel, limitMillis))
			if necessitiesDone {
				fin.Finish(result.Ok(out))
			} else {
				fin.Finish(result.Err[[]result.Result[V]](reason.Timeout(reason.FactoryParallel, limitMillis)))
			}

		case RequireNecessities:
			// The no-limit phase for necessities is over; from here on
			// behave like SkipOptionalsIfTimeRemains for the remainder.
			timeOption = SkipOptionalsIfTimeRemains
			if pendingNecessities == 0 {
				out := snapshot()
				mu.Unlock()
				gate.Fire(nil)
				fin.Finish(result.Ok(out))
				return
			}
			// Necessities are still running: leave the engine armed.
			// They run uncapped and will finish on their own.
			mu.Unlock()
		}
	}

	cancelFn, err := engine.Run[M, V](
		run,
		reason.FactoryParallel,
		children,
		message,
		false,
		action,
		timeoutFn,
		engine.Config{TimeLimit: timeLimit, Throttle: throttle, Metrics: Metrics},
		Observer,
	)
	if err != nil {
		fin.Finish(result.Err[[]result.Result[V]](reason.Configuration(reason.FactoryParallel, err.Error(), nil, err)))
		return nil
	}
	gate.Set(cancelFn)

	return func(r *reason.Reason) {
		if fin.Done() {
			return
		}
		gate.Fire(r)
		if r == nil {
			r = reason.Cancelled(reason.FactoryParallel, "")
		}
		fin.Finish(result.Err[[]result.Result[V]](r))
	}
}
