package engine

import "time"

// Clock abstracts the single one-shot timer the engine arms for a time
// limit, so tests can swap in a fake without sleeping wall-clock time.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the minimal surface the engine needs from an armed timer.
type Timer interface {
	Stop() bool
}

type realClock struct{}

// RealClock is the engine's default Clock, backed by time.AfterFunc.
var RealClock Clock = realClock{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
