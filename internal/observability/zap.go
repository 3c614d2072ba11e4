package observability

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Zap is an Observer backed by a structured zap.Logger. It logs every
// child launch and completion at debug level and timeouts/cancellations
// at info level, so enabling it on a noisy composite doesn't flood
// production logs by default.
type Zap struct {
	log *zap.Logger
}

// NewZap wraps log. A nil log falls back to zap.NewNop().
func NewZap(log *zap.Logger) Zap {
	if log == nil {
		log = zap.NewNop()
	}
	return Zap{log: log}
}

func (z Zap) ChildLaunched(run uuid.UUID, factory string, index int) {
	z.log.Debug("requestor launched",
		zap.String("run", run.String()),
		zap.String("factory", factory),
		zap.Int("index", index),
	)
}

func (z Zap) ChildCompleted(run uuid.UUID, factory string, index int, ok bool) {
	z.log.Debug("requestor completed",
		zap.String("run", run.String()),
		zap.String("factory", factory),
		zap.Int("index", index),
		zap.Bool("ok", ok),
	)
}

func (z Zap) TimedOut(run uuid.UUID, factory string) {
	z.log.Info("composite time limit exceeded",
		zap.String("run", run.String()),
		zap.String("factory", factory),
	)
}

func (z Zap) Cancelled(run uuid.UUID, factory string) {
	z.log.Info("composite cancelled",
		zap.String("run", run.String()),
		zap.String("factory", factory),
	)
}
