package relay

// State is the health of a Reference.
type State int32

const (
	// StateLoading means Start has not yet processed a document.
	StateLoading State = iota

	// StateHealthy means the latest document was applied.
	StateHealthy

	// StateDegraded means the latest document was rejected. The previous
	// value is still current.
	StateDegraded

	// StateEmpty means every document so far was rejected and no value has
	// been applied. The Reference keeps watching.
	StateEmpty
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Ready reports whether a value is available.
func (s State) Ready() bool {
	return s == StateHealthy || s == StateDegraded
}
