package connection

// State is the lifecycle state of a logical push channel. Exactly one
// Manager owns the authoritative state; it is mutated only by the Manager's
// own event handlers.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event drives state transitions.
type Event int

const (
	EventConnect    Event = iota // caller asked to connect, or the retry timer fired
	EventOpened                  // transport handshake completed
	EventDisconnect              // caller asked to close
	EventClosed                  // transport closed
	EventFail                    // terminal condition: auth rejected or attempts exhausted
)

// String returns the lowercase event name.
func (e Event) String() string {
	switch e {
	case EventConnect:
		return "connect"
	case EventOpened:
		return "opened"
	case EventDisconnect:
		return "disconnect"
	case EventClosed:
		return "closed"
	case EventFail:
		return "fail"
	default:
		return "unknown"
	}
}

// nextState returns the state after applying ev, and whether the transition
// is allowed from s. Disallowed transitions leave the state untouched.
func nextState(s State, ev Event) (State, bool) {
	switch ev {
	case EventConnect:
		switch s {
		case StateIdle, StateClosed, StateFailed:
			return StateConnecting, true
		}
	case EventOpened:
		if s == StateConnecting {
			return StateOpen, true
		}
	case EventDisconnect:
		switch s {
		case StateIdle, StateConnecting, StateOpen, StateClosed, StateFailed:
			return StateClosing, true
		}
	case EventClosed:
		switch s {
		case StateConnecting, StateOpen, StateClosing:
			return StateClosed, true
		}
	case EventFail:
		switch s {
		case StateConnecting, StateOpen, StateClosed:
			return StateFailed, true
		}
	}
	return s, false
}
