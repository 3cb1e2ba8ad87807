package tui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-live/core"
)

// StatusMsg reports a change of the session status.
type StatusMsg struct {
	Status orchestration.Status
}

// TextMsg carries a fragment of the assistant's text response.
type TextMsg struct {
	Text string
}

// ErrorMsg carries a session failure.
type ErrorMsg struct {
	Err error
}

// Observer forwards orchestrator callbacks to a bubbletea program. Callbacks
// that arrive before Attach are dropped.
type Observer struct {
	program atomic.Pointer[tea.Program]
}

func NewObserver() *Observer {
	return &Observer{}
}

func (o *Observer) Attach(program *tea.Program) {
	o.program.Store(program)
}

// Options returns the orchestrator callbacks the observer listens on.
func (o *Observer) Options() []orchestration.OrchestratorOption {
	return []orchestration.OrchestratorOption{
		orchestration.WithStatusCallback(func(status orchestration.Status) {
			o.send(StatusMsg{Status: status})
		}),
		orchestration.WithTextCallback(func(text string) {
			o.send(TextMsg{Text: text})
		}),
		orchestration.WithErrorCallback(func(err error) {
			o.send(ErrorMsg{Err: err})
		}),
	}
}

func (o *Observer) send(msg tea.Msg) {
	if program := o.program.Load(); program != nil {
		program.Send(msg)
	}
}
