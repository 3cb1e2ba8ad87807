package orchestration

import (
	"errors"
	"fmt"
)

var (
	ErrSessionInProgress = errors.New("session already in progress")
	ErrNoAudioInput      = errors.New("no audio input configured")
	ErrNoAudioOutput     = errors.New("no audio output configured")
	ErrNoTransport       = errors.New("no transport configured")
	ErrClosed            = errors.New("orchestrator closed")
	// ErrSessionStopped is returned by Start when Stop ran before the session
	// became active.
	ErrSessionStopped = errors.New("session stopped while connecting")
)

// DeviceUnavailableError means the microphone could not be acquired, either
// because access was denied or because there is no device.
type DeviceUnavailableError struct {
	Err error
}

func (e *DeviceUnavailableError) Error() string {
	if e.Err == nil {
		return "audio input device unavailable"
	}
	return fmt.Sprintf("audio input device unavailable: %v", e.Err)
}

func (e *DeviceUnavailableError) Unwrap() error { return e.Err }

// ConnectError means the transport handshake failed.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return "failed to connect"
	}
	return fmt.Sprintf("failed to connect: %v", e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TransportError is a mid-session failure. A nil Err means the remote closed
// the session.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport closed by remote"
	}
	return fmt.Sprintf("transport failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
