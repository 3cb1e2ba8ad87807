package tui

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/screens"
)

type fakeController struct {
	toggles   atomic.Int32
	toggleErr error
	contexts  []string
}

func (c *fakeController) Toggle(context.Context) error {
	c.toggles.Add(1)
	return c.toggleErr
}

func (c *fakeController) NotifyContextChanged(text string) {
	c.contexts = append(c.contexts, text)
}

func (c *fakeController) Status() orchestration.Status { return orchestration.StatusIdle }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSpaceTogglesTheSession(t *testing.T) {
	controller := &fakeController{toggleErr: errors.New("mic denied")}
	model := NewModel(context.Background(), controller, screens.Default())

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if cmd == nil {
		t.Fatalf("expected a toggle command")
	}
	model.Update(cmd())

	if got := controller.toggles.Load(); got != 1 {
		t.Fatalf("expected one toggle, got %d", got)
	}
	if !strings.Contains(model.View(), "mic denied") {
		t.Fatalf("expected toggle error in view, got %q", model.View())
	}
}

func TestNumberKeysSwitchScreens(t *testing.T) {
	controller := &fakeController{}
	bridge := screens.Default()
	model := NewModel(context.Background(), controller, bridge)

	model.Update(runes("3"))

	entries := bridge.Screens()
	if bridge.Current() != entries[2].ID {
		t.Fatalf("expected screen %s, got %s", entries[2].ID, bridge.Current())
	}
	if len(controller.contexts) != 1 || controller.contexts[0] != entries[2].Context {
		t.Fatalf("expected context of %s to be sent, got %v", entries[2].ID, controller.contexts)
	}
}

func TestQuitKeyQuits(t *testing.T) {
	model := NewModel(context.Background(), &fakeController{}, screens.Default())

	_, cmd := model.Update(runes("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestStatusAndTextAreRendered(t *testing.T) {
	model := NewModel(context.Background(), &fakeController{}, screens.Default())

	model.Update(ErrorMsg{Err: errors.New("stale")})
	model.Update(StatusMsg{Status: orchestration.StatusConnecting})
	model.Update(StatusMsg{Status: orchestration.StatusSpeaking})
	model.Update(TextMsg{Text: "Hello "})
	model.Update(TextMsg{Text: "there"})

	view := model.View()
	if !strings.Contains(view, "speaking") {
		t.Fatalf("expected speaking status, got %q", view)
	}
	if !strings.Contains(view, "Hello there") {
		t.Fatalf("expected joined text, got %q", view)
	}
	if strings.Contains(view, "stale") {
		t.Fatalf("expected connecting to clear the previous error, got %q", view)
	}
}

func TestTranscriptIsBounded(t *testing.T) {
	model := NewModel(context.Background(), &fakeController{}, screens.Default())

	model.Update(TextMsg{Text: strings.Repeat("a", maxTranscript)})
	model.Update(TextMsg{Text: "end"})

	if len(model.transcript) != maxTranscript {
		t.Fatalf("expected transcript capped at %d, got %d", maxTranscript, len(model.transcript))
	}
	if !strings.HasSuffix(model.transcript, "end") {
		t.Fatalf("expected newest text kept")
	}
}

func TestObserverDropsMessagesBeforeAttach(t *testing.T) {
	observer := NewObserver()
	if len(observer.Options()) != 3 {
		t.Fatalf("expected three callback options")
	}
	observer.send(TextMsg{Text: "ignored"})
}
