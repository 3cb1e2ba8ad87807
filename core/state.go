package orchestration

// State is the session lifecycle: Idle → Connecting → Active → Closing → Idle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateActive
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Status is what a UI shows for the mic control. Active splits into
// Listening and Speaking depending on whether remote audio is playing;
// Closing is reported as Idle since the control is already inactive.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusListening
	StatusSpeaking
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusListening:
		return "listening"
	case StatusSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

func statusFor(state State, speaking bool) Status {
	switch state {
	case StateConnecting:
		return StatusConnecting
	case StateActive:
		if speaking {
			return StatusSpeaking
		}
		return StatusListening
	default:
		return StatusIdle
	}
}

func parseState(s string) State {
	for _, state := range []State{StateIdle, StateConnecting, StateActive, StateClosing} {
		if state.String() == s {
			return state
		}
	}
	return StateIdle
}

func parseStatus(s string) Status {
	for _, status := range []Status{StatusIdle, StatusConnecting, StatusListening, StatusSpeaking} {
		if status.String() == s {
			return status
		}
	}
	return StatusIdle
}
