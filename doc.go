// Package parsec provides four ways to compose requestors — one-shot,
// callback-driven units of work — into a single requestor with
// well-defined concurrency, ordering, cancellation, timeout, and
// throttling semantics.
//
// Operators
//   - Parallel: run many requestors concurrently; collect all results.
//   - Race: run many concurrently; succeed on the first success.
//   - Sequence: run strictly one at a time, threading each success into
//     the next requestor's message.
//   - Fallback: run one at a time; succeed on the first success.
//
// Requestors
// A Requestor[M, V] is a callable (receiver, message) that invokes
// receiver exactly once with a result.Result[V], optionally returning a
// Cancellor. See package requestor for adapters from plain Go functions.
//
// Results and reasons
// A Result carries exactly one of a success value or a reason.Reason.
// Reasons are values, not exceptions: they travel through receivers like
// any other data. See packages result and reason.
//
// Engine
// All four operators are built on one shared run engine
// (internal/engine) that launches children under a throttle, enforces
// at-most-once delivery of each child's outcome, and arms an optional
// time limit. Callers of this package never see the engine directly.
package parsec
