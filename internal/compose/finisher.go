// Package compose holds the bit of bookkeeping every operator in the
// parsec package needs identically: firing a composite's own receiver
// exactly once, regardless of whether that firing is triggered by the
// engine's action callback, the engine's timeout callback, or the
// caller invoking the composite's cancellor.
package compose

import (
	"sync"

	"github.com/ygrebnov/parsec/requestor"
	"github.com/ygrebnov/parsec/result"
)

// Finisher gates a Receiver so it is invoked at most once. It is the Go
// realization of the "completion latch" called for in the source
// patterns that need re-architecture: a compare-and-set once, rather
// than a mutable closure flag.
type Finisher[V any] struct {
	mu       sync.Mutex
	done     bool
	receiver requestor.Receiver[V]
}

// NewFinisher wraps receiver, which must not be nil.
func NewFinisher[V any](receiver requestor.Receiver[V]) *Finisher[V] {
	return &Finisher[V]{receiver: receiver}
}

// Finish delivers res to the wrapped receiver and reports true, unless
// this Finisher has already finished, in which case it reports false and
// does nothing.
func (f *Finisher[V]) Finish(res result.Result[V]) bool {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return false
	}
	f.done = true
	f.mu.Unlock()
	f.receiver(res)
	return true
}

// Done reports whether Finish has already fired.
func (f *Finisher[V]) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}
