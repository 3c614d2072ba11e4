package observability

import "github.com/google/uuid"

// Noop discards every event. It is the engine's default Observer.
type Noop struct{}

func (Noop) ChildLaunched(uuid.UUID, string, int)    {}
func (Noop) ChildCompleted(uuid.UUID, string, int, bool) {}
func (Noop) TimedOut(uuid.UUID, string)              {}
func (Noop) Cancelled(uuid.UUID, string)             {}
