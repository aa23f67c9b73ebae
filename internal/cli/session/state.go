package session

// State is the lifecycle state of the session store
type State int

const (
	// StateIdle means no request was ever issued
	StateIdle State = iota
	// StateLoading means the tracked request is outstanding
	StateLoading
	// StateReady means the tracked request settled; the session may still be anonymous
	StateReady
	// StateFailed means the tracked request failed and the snapshot is empty
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// canTransition reports whether the store may move from one state to another.
// Any state may start a request; only a loading store may settle.
func canTransition(from, to State) bool {
	switch to {
	case StateLoading:
		return true
	case StateReady, StateFailed:
		return from == StateLoading
	default:
		return false
	}
}
