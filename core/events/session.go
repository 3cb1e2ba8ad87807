package events

const (
	// KindSessionStatusChanged identifies a change of the UI-facing status.
	KindSessionStatusChanged Kind = "session.status_changed"
	// KindSessionStateChanged identifies a lifecycle transition.
	KindSessionStateChanged Kind = "session.state_changed"
	// KindSessionStarted identifies a session that reached the active state.
	KindSessionStarted Kind = "session.started"
	// KindSessionEnded identifies a session that was torn down.
	KindSessionEnded Kind = "session.ended"
	// KindSessionFailed identifies a failed start or a mid-session failure.
	KindSessionFailed Kind = "session.failed"
)

// SessionStatusChanged carries the new status and the one it replaced.
type SessionStatusChanged struct {
	Base
	Previous string
	Status   string
}

func NewSessionStatusChanged(sessionID, previous, status string) SessionStatusChanged {
	return SessionStatusChanged{Base: NewBase(KindSessionStatusChanged, sessionID), Previous: previous, Status: status}
}

// SessionStateChanged carries a lifecycle transition, Closing included.
type SessionStateChanged struct {
	Base
	Previous string
	State    string
}

func NewSessionStateChanged(sessionID, previous, state string) SessionStateChanged {
	return SessionStateChanged{Base: NewBase(KindSessionStateChanged, sessionID), Previous: previous, State: state}
}

type SessionStarted struct{ Base }

func NewSessionStarted(sessionID string) SessionStarted {
	return SessionStarted{Base: NewBase(KindSessionStarted, sessionID)}
}

// SessionEnded marks teardown. RemoteInitiated is set when the transport
// closed or failed rather than the caller stopping the session.
type SessionEnded struct {
	Base
	RemoteInitiated bool
}

func NewSessionEnded(sessionID string, remoteInitiated bool) SessionEnded {
	return SessionEnded{Base: NewBase(KindSessionEnded, sessionID), RemoteInitiated: remoteInitiated}
}

// SessionFailed carries the error that ended a start attempt or a session.
type SessionFailed struct {
	Base
	Err error
}

func NewSessionFailed(sessionID string, err error) SessionFailed {
	return SessionFailed{Base: NewBase(KindSessionFailed, sessionID), Err: err}
}
