package parsec

// TimeOption governs how Parallel's optional requestors interact with a
// configured time limit. It is a closed enumeration; Parallel rejects any
// other value as a configuration error.
type TimeOption int

const (
	// SkipOptionalsIfTimeRemains finishes as soon as all necessities
	// complete, cancelling any still-running optionals. If the time
	// limit elapses before necessities finish, the composite fails.
	SkipOptionalsIfTimeRemains TimeOption = iota

	// TryOptionalsIfTimeRemains lets every requestor, necessity or
	// optional, share the time limit; optionals may keep running until
	// the limit is reached.
	TryOptionalsIfTimeRemains

	// RequireNecessities applies the time limit only to optionals;
	// necessities may run indefinitely. Once necessities finish, the
	// remainder behaves like SkipOptionalsIfTimeRemains.
	RequireNecessities
)

func (t TimeOption) valid() bool {
	switch t {
	case SkipOptionalsIfTimeRemains, TryOptionalsIfTimeRemains, RequireNecessities:
		return true
	default:
		return false
	}
}

func (t TimeOption) String() string {
	switch t {
	case SkipOptionalsIfTimeRemains:
		return "SkipOptionalsIfTimeRemains"
	case TryOptionalsIfTimeRemains:
		return "TryOptionalsIfTimeRemains"
	case RequireNecessities:
		return "RequireNecessities"
	default:
		return "TimeOption(invalid)"
	}
}
