package compose

import (
	"sync"

	"github.com/ygrebnov/parsec/internal/engine"
	"github.com/ygrebnov/parsec/reason"
)

// CancelGate publishes an engine.Cancel exactly once and blocks any Fire
// call until it has been published. It exists to close a narrow but real
// race: engine.Run starts its dispatch goroutine before returning the
// Cancel it produces, so a fully synchronous child (one whose receiver
// fires before its Requestor call returns) can trigger a composite's
// action callback, and with it a call to Fire, before the caller has
// had a chance to store the Cancel engine.Run just handed back.
type CancelGate struct {
	wg     sync.WaitGroup
	once   sync.Once
	cancel engine.Cancel
}

// NewCancelGate returns a gate with its wait group armed; Fire blocks
// until Set is called.
func NewCancelGate() *CancelGate {
	g := &CancelGate{}
	g.wg.Add(1)
	return g
}

// Set publishes c. Only the first call has any effect.
func (g *CancelGate) Set(c engine.Cancel) {
	g.once.Do(func() {
		g.cancel = c
		g.wg.Done()
	})
}

// Fire waits for Set, then invokes the published Cancel with r.
func (g *CancelGate) Fire(r *reason.Reason) {
	g.wg.Wait()
	g.cancel(r)
}
