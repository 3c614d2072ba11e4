package parsec

import "errors"

const Namespace = "parsec"

var (
	// ErrEmptyRace is the Cause of the configuration Reason Race and
	// Fallback deliver when given no children; racing nothing has no
	// well-defined winner. Recover it with errors.Is against the Reason
	// (or the Result.Err it travels in).
	ErrEmptyRace = errors.New(Namespace + ": race requires at least one requestor")

	// ErrInvalidTimeOption is the Cause of the configuration Reason
	// Parallel delivers when an explicit TimeOption falls outside the
	// closed enumeration. Recover it with errors.Is.
	ErrInvalidTimeOption = errors.New(Namespace + ": invalid time option")

	// ErrInvalidRequestor is the Cause of the configuration Reason every
	// operator delivers when its requestor list contains a nil entry.
	// Recover it with errors.Is.
	ErrInvalidRequestor = errors.New(Namespace + ": invalid requestor")
)
