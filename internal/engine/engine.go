// Package engine implements the run engine described by the run-engine
// specification: it launches child requestors under a throttle, enforces
// an at-most-once action callback per child, arms an optional one-shot
// time limit, and returns an idempotent cancellor.
//
// This is the one package in the module that is allowed to know about
// goroutines, timers, and semaphores; the four operators above it only
// ever see the Run/Action/Cancel vocabulary below.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/google/uuid"

	"github.com/ygrebnov/parsec/internal/metrics"
	"github.com/ygrebnov/parsec/internal/observability"
	"github.com/ygrebnov/parsec/reason"
	"github.com/ygrebnov/parsec/requestor"
	"github.com/ygrebnov/parsec/result"
)

// ChildResult is what a completed (or synchronously-thrown) child reports
// to Action. Exactly one of Value/Reason is meaningful, distinguished by
// HasValue, mirroring result.Result's own present/absent discipline.
type ChildResult[V any] struct {
	Value          V
	Reason         *reason.Reason
	HasValue       bool
	RequestorIndex int
}

// Action is invoked at most once per launched child, including for
// children that panicked before calling their receiver. Completions that
// arrive through a receiver after Cancel are dropped, and children never
// launched before Cancel never reach Action. It decides whether to finish
// the composite, cancel peers (by calling the Cancel this Run returned),
// or simply continue.
type Action[V any] func(ChildResult[V])

// Config configures a single Run invocation.
type Config struct {
	// TimeLimit is the time budget for the composite. Zero means no
	// limit. Negative is a configuration error.
	TimeLimit time.Duration

	// Throttle caps in-flight children. Zero means unbounded.
	Throttle uint

	// Clock supplies the timer used for TimeLimit. Defaults to
	// RealClock when nil.
	Clock Clock

	// Metrics receives instrument counts for this run. Defaults to a
	// no-op provider when nil.
	Metrics metrics.Provider
}

// ErrNegativeTimeLimit is wrapped into a configuration Reason when
// Config.TimeLimit is negative.
var ErrNegativeTimeLimit = fmt.Errorf("engine: time limit must be non-negative")

func (c Config) validate() error {
	if c.TimeLimit < 0 {
		return ErrNegativeTimeLimit
	}
	return nil
}

// Cancel attempts to abort every still-pending child and disarm the time
// limit timer. It is idempotent and safe to call from any goroutine,
// including from inside Action.
type Cancel func(r *reason.Reason)

// state is the per-run mutable record: the shared resource the spec
// requires be mutated atomically with respect to concurrent child
// completions.
type state[V any] struct {
	mu         sync.Mutex
	live       bool
	cancellors []requestor.Cancellor
	timer      Timer

	dispatchCtx    context.Context
	dispatchCancel context.CancelFunc
}

// messageSource resolves the message delivered to the next child to
// launch. For non-threading operators it always returns the initial
// message; for sequence, it returns the most recently produced value
// (safe without extra locking beyond the mutex below because threading
// is only ever enabled together with Throttle==1, which guarantees a
// child's completion happens-before the next child's launch).
type messageSource[M, V any] struct {
	mu            sync.Mutex
	threadResults bool
	current       M
}

func (ms *messageSource[M, V]) next() M {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.current
}

func (ms *messageSource[M, V]) advance(v V) {
	if !ms.threadResults {
		return
	}
	ms.mu.Lock()
	// M == V is guaranteed by every caller that sets threadResults; see
	// the Sequence operator, which only ever calls Run[V, V].
	ms.current = any(v).(M)
	ms.mu.Unlock()
}

// Run launches children in order under cfg's throttle, routes each
// completion through action exactly once, and invokes timeout at most
// once if cfg.TimeLimit elapses. threadResults, when true, requires
// M == V and feeds each child's produced value as the next child's
// message (sequence's only knob into the otherwise operator-agnostic
// engine).
//
// Run validates cfg synchronously and returns a non-nil error without
// ever calling action or timeout if it is malformed.
func Run[M, V any](
	run uuid.UUID,
	factory reason.Factory,
	children []requestor.Requestor[M, V],
	initialMessage M,
	threadResults bool,
	action Action[V],
	timeout func(),
	cfg Config,
	obs observability.Observer,
) (Cancel, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		obs = observability.Noop{}
	}
	mtr := cfg.Metrics
	if mtr == nil {
		mtr = metrics.NewNoopProvider()
	}

	n := len(children)
	if n == 0 {
		return func(*reason.Reason) {}, nil
	}

	effectiveCap := int64(cfg.Throttle)
	if effectiveCap == 0 || effectiveCap > int64(n) {
		effectiveCap = int64(n)
	}

	dispatchCtx, dispatchCancel := context.WithCancel(context.Background())

	st := &state[V]{
		live:           true,
		cancellors:     make([]requestor.Cancellor, n),
		dispatchCtx:    dispatchCtx,
		dispatchCancel: dispatchCancel,
	}

	clock := cfg.Clock
	if clock == nil {
		clock = RealClock
	}

	if cfg.TimeLimit > 0 {
		st.timer = clock.AfterFunc(cfg.TimeLimit, func() {
			st.mu.Lock()
			fire := st.live
			st.mu.Unlock()
			if !fire {
				return
			}
			obs.TimedOut(run, string(factory))
			timeout()
		})
	}

	sem := semaphore.NewWeighted(effectiveCap)
	ms := &messageSource[M, V]{threadResults: threadResults, current: initialMessage}

	go dispatch(st, sem, children, ms, action, obs, mtr, run, factory)

	cancel := func(r *reason.Reason) {
		st.mu.Lock()
		if !st.live {
			st.mu.Unlock()
			return
		}
		st.live = false
		if st.timer != nil {
			st.timer.Stop()
		}
		cancellors := st.cancellors
		st.cancellors = nil
		st.mu.Unlock()

		dispatchCancel()
		obs.Cancelled(run, string(factory))

		if r == nil {
			r = reason.Cancelled(factory, "")
		}
		for _, c := range cancellors {
			if c == nil {
				continue
			}
			fireCancellor(c, r)
		}
	}

	return cancel, nil
}

// fireCancellor invokes c, swallowing any panic: "exceptions thrown by
// child cancellors during composite cancellation are swallowed;
// cancellation always completes."
func fireCancellor(c requestor.Cancellor, r *reason.Reason) {
	defer func() { _ = recover() }()
	c(r)
}

// dispatch launches children strictly in input order, one Acquire at a
// time, so that Throttle==1 callers (sequence, fallback) get a genuine
// one-at-a-time guarantee: the semaphore is not released for child i
// until child i completes, and Acquire for child i+1 cannot succeed
// before that release.
func dispatch[M, V any](
	st *state[V],
	sem *semaphore.Weighted,
	children []requestor.Requestor[M, V],
	ms *messageSource[M, V],
	action Action[V],
	obs observability.Observer,
	mtr metrics.Provider,
	run uuid.UUID,
	factory reason.Factory,
) {
	for i := range children {
		if err := sem.Acquire(st.dispatchCtx, 1); err != nil {
			return
		}

		st.mu.Lock()
		live := st.live
		st.mu.Unlock()
		if !live {
			sem.Release(1)
			return
		}

		msg := ms.next()
		go launch(st, sem, i, children[i], msg, ms, action, obs, mtr, run, factory)
	}
}

// launch starts exactly one child and wires its receiver to (a) enforce
// at-most-once delivery to action, (b) release the child's throttle slot
// on completion, (c) advance the message source for sequence threading,
// and (d) record the child's cancellor for the lifetime of its run.
func launch[M, V any](
	st *state[V],
	sem *semaphore.Weighted,
	index int,
	r requestor.Requestor[M, V],
	msg M,
	ms *messageSource[M, V],
	action Action[V],
	obs observability.Observer,
	mtr metrics.Provider,
	run uuid.UUID,
	factory reason.Factory,
) {
	obs.ChildLaunched(run, string(factory), index)

	inflight := mtr.UpDownCounter("parsec.children.inflight", metrics.WithUnit("1"))
	launched := mtr.Counter("parsec.children.launched", metrics.WithUnit("1"))
	completed := mtr.Counter("parsec.children.completed", metrics.WithUnit("1"))
	failed := mtr.Counter("parsec.children.failed", metrics.WithUnit("1"))
	duration := mtr.Histogram("parsec.child.duration_seconds", metrics.WithUnit("s"))

	launched.Add(1)
	inflight.Add(1)
	start := time.Now()

	var fired atomic.Bool

	finishMetrics := func(ok bool) {
		inflight.Add(-1)
		duration.Record(time.Since(start).Seconds())
		completed.Add(1)
		if !ok {
			failed.Add(1)
		}
	}

	receiver := func(res result.Result[V]) {
		if !fired.CompareAndSwap(false, true) {
			return // child violated at-most-once; drop the duplicate.
		}

		st.mu.Lock()
		live := st.live
		if live {
			st.cancellors[index] = nil
		}
		st.mu.Unlock()

		if !live {
			return // cancelled before this completion arrived: no-op.
		}

		v, ok := res.Value()
		if ok {
			ms.advance(v)
		}
		// Hold the throttle slot until action has run, so a cancel issued
		// by action lands before dispatch can launch the next child.
		defer sem.Release(1)

		obs.ChildCompleted(run, string(factory), index, ok)
		finishMetrics(ok)

		if ok {
			action(ChildResult[V]{Value: v, HasValue: true, RequestorIndex: index})
			return
		}
		rsn, _ := res.Reason()
		var rr *reason.Reason
		if typed, ok := rsn.(*reason.Reason); ok {
			rr = typed
		} else {
			rr = reason.ChildFailure(factory, index, rsn)
		}
		action(ChildResult[V]{Reason: rr, RequestorIndex: index})
	}

	cancellor, threw := callChild(r, receiver, msg)
	if threw != nil {
		if fired.CompareAndSwap(false, true) {
			defer sem.Release(1)
			obs.ChildCompleted(run, string(factory), index, false)
			finishMetrics(false)
			action(ChildResult[V]{Reason: reason.ChildThrow(factory, index, threw), RequestorIndex: index})
		}
		return
	}

	st.mu.Lock()
	if st.live && !fired.Load() {
		st.cancellors[index] = cancellor
	}
	st.mu.Unlock()
}

// callChild invokes r, converting a synchronous panic into a recovered
// value instead of letting it escape the dispatch goroutine.
func callChild[M, V any](r requestor.Requestor[M, V], receiver requestor.Receiver[V], msg M) (cancellor requestor.Cancellor, recovered any) {
	defer func() {
		recovered = recover()
	}()
	cancellor = r(receiver, msg)
	return cancellor, nil
}
