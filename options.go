package parsec

import (
	"time"

	"github.com/ygrebnov/parsec/requestor"
)

// ParallelOption configures Parallel. Use WithOptionals, WithTimeLimit,
// WithParallelTimeOption, and WithParallelThrottle to build one up, the
// way functional options configure Workers in the worker-pool library
// this package's engine was grown from.
type ParallelOption[M, V any] func(*parallelConfig[M, V])

type parallelConfig[M, V any] struct {
	optionals  []requestor.Requestor[M, V]
	timeLimit  time.Duration
	timeOption TimeOption
	throttle   uint
}

func defaultParallelConfig[M, V any]() parallelConfig[M, V] {
	return parallelConfig[M, V]{timeOption: SkipOptionalsIfTimeRemains}
}

// WithOptionals supplies the optional requestors alongside Parallel's
// required necessities.
func WithOptionals[M, V any](optionals ...requestor.Requestor[M, V]) ParallelOption[M, V] {
	return func(c *parallelConfig[M, V]) { c.optionals = optionals }
}

// WithTimeLimit sets the composite's time budget. Zero (the default)
// means no limit.
func WithTimeLimit[M, V any](d time.Duration) ParallelOption[M, V] {
	return func(c *parallelConfig[M, V]) { c.timeLimit = d }
}

// WithParallelTimeOption selects how optionals interact with the time
// limit. Overridden when there are no necessities or no optionals, per
// Parallel's normalisation rules.
func WithParallelTimeOption[M, V any](opt TimeOption) ParallelOption[M, V] {
	return func(c *parallelConfig[M, V]) { c.timeOption = opt }
}

// WithParallelThrottle caps the number of in-flight children. Zero (the
// default) means unbounded.
func WithParallelThrottle[M, V any](n uint) ParallelOption[M, V] {
	return func(c *parallelConfig[M, V]) { c.throttle = n }
}

// RaceOption configures Race.
type RaceOption[M, V any] func(*raceConfig[M, V])

type raceConfig[M, V any] struct {
	timeLimit time.Duration
	throttle  uint
}

// WithRaceTimeLimit sets Race's time budget. Zero means no limit.
func WithRaceTimeLimit[M, V any](d time.Duration) RaceOption[M, V] {
	return func(c *raceConfig[M, V]) { c.timeLimit = d }
}

// WithRaceThrottle caps the number of in-flight children. Zero means
// unbounded.
func WithRaceThrottle[M, V any](n uint) RaceOption[M, V] {
	return func(c *raceConfig[M, V]) { c.throttle = n }
}

// SequenceOption configures Sequence.
type SequenceOption[T any] func(*sequenceConfig[T])

type sequenceConfig[T any] struct {
	timeLimit time.Duration
}

// WithSequenceTimeLimit sets Sequence's time budget. Zero means no limit.
func WithSequenceTimeLimit[T any](d time.Duration) SequenceOption[T] {
	return func(c *sequenceConfig[T]) { c.timeLimit = d }
}

// FallbackOption configures Fallback.
type FallbackOption[M, V any] func(*fallbackConfig[M, V])

type fallbackConfig[M, V any] struct {
	timeLimit time.Duration
}

// WithFallbackTimeLimit sets Fallback's time budget. Zero means no limit.
func WithFallbackTimeLimit[M, V any](d time.Duration) FallbackOption[M, V] {
	return func(c *fallbackConfig[M, V]) { c.timeLimit = d }
}
