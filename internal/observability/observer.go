// Package observability wraps the engine's diagnostic events behind a
// small injectable interface, following the composition hierarchy used
// elsewhere in the wider codebase this engine was split out of: a Noop
// implementation is the default, and a zap-backed implementation can be
// swapped in by callers who want structured logs.
package observability

import "github.com/google/uuid"

// Observer receives diagnostic events from a single composite
// invocation, identified by run. It never influences control flow; an
// Observer that panics or blocks is a bug in the caller, not the engine.
type Observer interface {
	ChildLaunched(run uuid.UUID, factory string, index int)
	ChildCompleted(run uuid.UUID, factory string, index int, ok bool)
	TimedOut(run uuid.UUID, factory string)
	Cancelled(run uuid.UUID, factory string)
}
