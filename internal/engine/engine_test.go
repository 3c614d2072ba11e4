package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/parsec/internal/metrics"
	"github.com/ygrebnov/parsec/internal/observability"
	"github.com/ygrebnov/parsec/reason"
	"github.com/ygrebnov/parsec/requestor"
	"github.com/ygrebnov/parsec/result"
)

// delay returns a Requestor that calls its receiver with value d
// (as a duration in milliseconds) after sleeping d, and whose cancellor
// prevents that call if it fires first.
func delay(d time.Duration) requestor.Requestor[struct{}, time.Duration] {
	return func(receiver requestor.Receiver[time.Duration], _ struct{}) requestor.Cancellor {
		var fired atomic.Bool
		timer := time.AfterFunc(d, func() {
			if fired.CompareAndSwap(false, true) {
				receiver(result.Ok(d))
			}
		})
		return func(*reason.Reason) {
			if fired.CompareAndSwap(false, true) {
				timer.Stop()
			}
		}
	}
}

func collect[V any](n int) (Action[V], func() []ChildResult[V], <-chan struct{}) {
	results := make([]ChildResult[V], 0, n)
	var mu sync.Mutex
	done := make(chan struct{})
	count := 0
	action := func(cr ChildResult[V]) {
		mu.Lock()
		results = append(results, cr)
		count++
		if count == n {
			close(done)
		}
		mu.Unlock()
	}
	getter := func() []ChildResult[V] {
		mu.Lock()
		defer mu.Unlock()
		out := make([]ChildResult[V], len(results))
		copy(out, results)
		return out
	}
	return action, getter, done
}

func TestRun_AtMostOnceActionPerChild(t *testing.T) {
	children := []requestor.Requestor[struct{}, int]{
		func(receiver requestor.Receiver[int], _ struct{}) requestor.Cancellor {
			receiver(result.Ok(1))
			receiver(result.Ok(1)) // misbehaving child calls receiver twice.
			return nil
		},
	}

	var calls atomic.Int32
	done := make(chan struct{})
	action := func(ChildResult[int]) {
		calls.Add(1)
		close(done)
	}

	_, err := Run[struct{}, int](uuid.New(), reason.FactoryParallel, children, struct{}{}, false, action, func() {}, Config{}, observability.Noop{})
	require.NoError(t, err)

	<-done
	time.Sleep(20 * time.Millisecond) // give a wrongful second call a chance to land
	require.Equal(t, int32(1), calls.Load())
}

func TestRun_ThrowMeansFail(t *testing.T) {
	children := []requestor.Requestor[struct{}, int]{
		func(requestor.Receiver[int], struct{}) requestor.Cancellor {
			panic("boom")
		},
	}

	action, get, done := collect[int](1)
	_, err := Run[struct{}, int](uuid.New(), reason.FactoryParallel, children, struct{}{}, false, action, func() {}, Config{}, observability.Noop{})
	require.NoError(t, err)

	<-done
	rs := get()
	require.Len(t, rs, 1)
	require.False(t, rs[0].HasValue)
	require.Equal(t, reason.KindChildThrow, rs[0].Reason.Kind)
	require.EqualError(t, rs[0].Reason.Cause, "boom")
}

func TestRun_IndexPreservation(t *testing.T) {
	children := []requestor.Requestor[struct{}, time.Duration]{
		delay(30 * time.Millisecond),
		delay(10 * time.Millisecond),
		delay(20 * time.Millisecond),
	}

	action, get, done := collect[time.Duration](3)
	_, err := Run[struct{}, time.Duration](uuid.New(), reason.FactoryParallel, children, struct{}{}, false, action, func() {}, Config{}, observability.Noop{})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}

	byIndex := map[int]time.Duration{}
	for _, r := range get() {
		v, ok := r.Value, r.HasValue
		require.True(t, ok)
		byIndex[r.RequestorIndex] = v
	}
	require.Equal(t, 30*time.Millisecond, byIndex[0])
	require.Equal(t, 10*time.Millisecond, byIndex[1])
	require.Equal(t, 20*time.Millisecond, byIndex[2])
}

func TestRun_ThrottleDiscipline(t *testing.T) {
	const n = 8
	const throttle = 2

	var inFlight atomic.Int32
	var maxSeen atomic.Int32

	children := make([]requestor.Requestor[struct{}, int], n)
	for i := range children {
		children[i] = func(receiver requestor.Receiver[int], _ struct{}) requestor.Cancellor {
			cur := inFlight.Add(1)
			for {
				m := maxSeen.Load()
				if cur <= m || maxSeen.CompareAndSwap(m, cur) {
					break
				}
			}
			time.AfterFunc(5*time.Millisecond, func() {
				inFlight.Add(-1)
				receiver(result.Ok(1))
			})
			return nil
		}
	}

	action, _, done := collect[int](n)
	_, err := Run[struct{}, int](uuid.New(), reason.FactoryParallel, children, struct{}{}, false, action, func() {}, Config{Throttle: throttle}, observability.Noop{})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out")
	}

	require.LessOrEqual(t, int(maxSeen.Load()), throttle)
}

func TestRun_CancelIsIdempotentAndFiresChildCancellors(t *testing.T) {
	var cancelCalls atomic.Int32
	children := []requestor.Requestor[struct{}, int]{
		func(requestor.Receiver[int], struct{}) requestor.Cancellor {
			return func(*reason.Reason) { cancelCalls.Add(1) }
		},
		func(requestor.Receiver[int], struct{}) requestor.Cancellor {
			return func(*reason.Reason) { cancelCalls.Add(1) }
		},
	}

	action := func(ChildResult[int]) {}
	cancel, err := Run[struct{}, int](uuid.New(), reason.FactoryRace, children, struct{}{}, false, action, func() {}, Config{}, observability.Noop{})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond) // let both children register their cancellors

	cancel(nil)
	cancel(nil)
	cancel(nil)

	require.Equal(t, int32(2), cancelCalls.Load())
}

func TestRun_TimeoutFiresOnce(t *testing.T) {
	children := []requestor.Requestor[struct{}, time.Duration]{
		delay(time.Hour), // never completes within the test
	}

	var timeoutCalls atomic.Int32
	action := func(ChildResult[time.Duration]) {}
	timeout := func() { timeoutCalls.Add(1) }

	cancel, err := Run[struct{}, time.Duration](uuid.New(), reason.FactoryRace, children, struct{}{}, false, action, timeout, Config{TimeLimit: 10 * time.Millisecond}, observability.Noop{})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), timeoutCalls.Load())

	cancel(nil) // must not re-fire timeout
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), timeoutCalls.Load())
}

func TestRun_SequenceThreadsValuesAndIsStrictlySerial(t *testing.T) {
	mapper := func(f func(int) int) requestor.Requestor[int, int] {
		return func(receiver requestor.Receiver[int], m int) requestor.Cancellor {
			receiver(result.Ok(f(m)))
			return nil
		}
	}

	children := []requestor.Requestor[int, int]{
		mapper(func(x int) int { return x + 1 }),
		mapper(func(x int) int { return x * 2 }),
		mapper(func(x int) int { return x - 3 }),
	}

	action, get, done := collect[int](3)

	_, err := Run[int, int](uuid.New(), reason.FactorySequence, children, 10, true, action, func() {}, Config{Throttle: 1}, observability.Noop{})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	rs := get()
	require.Len(t, rs, 3)
	require.Equal(t, 19, rs[len(rs)-1].Value) // (10+1)*2-3
}

func TestRun_NegativeTimeLimitIsConfigurationError(t *testing.T) {
	children := []requestor.Requestor[struct{}, int]{
		func(receiver requestor.Receiver[int], _ struct{}) requestor.Cancellor {
			receiver(result.Ok(1))
			return nil
		},
	}
	_, err := Run[struct{}, int](uuid.New(), reason.FactoryParallel, children, struct{}{}, false, func(ChildResult[int]) {}, func() {}, Config{TimeLimit: -time.Millisecond}, observability.Noop{})
	require.ErrorIs(t, err, ErrNegativeTimeLimit)
}

func TestRun_RecordsMetricsPerChild(t *testing.T) {
	children := []requestor.Requestor[struct{}, int]{
		func(receiver requestor.Receiver[int], _ struct{}) requestor.Cancellor {
			receiver(result.Ok(1))
			return nil
		},
		func(requestor.Receiver[int], struct{}) requestor.Cancellor {
			panic("boom")
		},
	}

	provider := metrics.NewBasicProvider()
	action, _, done := collect[int](2)

	_, err := Run[struct{}, int](
		uuid.New(), reason.FactoryParallel, children, struct{}{}, false,
		action, func() {}, Config{Metrics: provider}, observability.Noop{},
	)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	launched := provider.Counter("parsec.children.launched").(*metrics.BasicCounter)
	completed := provider.Counter("parsec.children.completed").(*metrics.BasicCounter)
	failed := provider.Counter("parsec.children.failed").(*metrics.BasicCounter)
	inflight := provider.UpDownCounter("parsec.children.inflight").(*metrics.BasicUpDownCounter)
	duration := provider.Histogram("parsec.child.duration_seconds").(*metrics.BasicHistogram)

	require.Equal(t, int64(2), launched.Snapshot())
	require.Equal(t, int64(2), completed.Snapshot())
	require.Equal(t, int64(1), failed.Snapshot())
	require.Equal(t, int64(0), inflight.Snapshot())
	require.Equal(t, int64(2), duration.Snapshot().Count)
}

func TestRun_EmptyChildrenIsNoop(t *testing.T) {
	var called atomic.Bool
	action := func(ChildResult[int]) { called.Store(true) }
	cancel, err := Run[struct{}, int](uuid.New(), reason.FactoryParallel, nil, struct{}{}, false, action, func() {}, Config{}, observability.Noop{})
	require.NoError(t, err)
	cancel(nil) // must not panic
	require.False(t, called.Load())
}
