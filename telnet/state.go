package telnet

// State is the lifecycle state of a client session.
type State int

const (
	// StateActive sessions read and dispatch commands.
	StateActive State = iota
	// StatePending sessions drain queued output before half-closing.
	StatePending
	// StateLinger sessions have half-closed their write side and wait for
	// the peer to close, bounded by the linger timer.
	StateLinger
	// StateDestroy is terminal; the session is released at the end of the
	// current event.
	StateDestroy
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePending:
		return "pending"
	case StateLinger:
		return "linger"
	case StateDestroy:
		return "destroy"
	default:
		return "unknown"
	}
}
