package compose

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/parsec/reason"
)

func TestCancelGate_FireBlocksUntilSet(t *testing.T) {
	g := NewCancelGate()

	var called atomic.Bool
	var got *reason.Reason

	fired := make(chan struct{})
	go func() {
		g.Fire(reason.Cancelled(reason.FactoryEngine, "stop"))
		close(fired)
	}()

	select {
	case <-fired:
		t.Fatal("Fire returned before Set was called")
	case <-time.After(20 * time.Millisecond):
	}

	g.Set(func(r *reason.Reason) {
		called.Store(true)
		got = r
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("Fire did not unblock after Set")
	}

	require.True(t, called.Load())
	require.NotNil(t, got)
}

func TestCancelGate_SetIsIdempotent(t *testing.T) {
	g := NewCancelGate()

	var calls atomic.Int32
	g.Set(func(r *reason.Reason) { calls.Add(1) })
	g.Set(func(r *reason.Reason) { calls.Add(100) })

	g.Fire(nil)

	require.Equal(t, int32(1), calls.Load())
}
