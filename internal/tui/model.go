// Package tui is the terminal front end of ema-live: a mic toggle, a screen
// switcher and the assistant's latest text.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	orchestration "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/screens"
	"github.com/muesli/reflow/wordwrap"
)

const (
	defaultWidth  = 80
	maxTranscript = 2000
)

// Controller is the part of the orchestrator the UI drives.
type Controller interface {
	Toggle(ctx context.Context) error
	NotifyContextChanged(text string)
	Status() orchestration.Status
}

type toggledMsg struct {
	err error
}

type keyMap struct {
	Toggle  key.Binding
	Screens key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Screens, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultKeyMap() keyMap {
	return keyMap{
		Toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "start/stop")),
		Screens: key.NewBinding(key.WithKeys("1", "2", "3", "4", "5"), key.WithHelp("1-5", "switch screen")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	screenStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

	statusStyles = map[orchestration.Status]lipgloss.Style{
		orchestration.StatusIdle:       lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		orchestration.StatusConnecting: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		orchestration.StatusListening:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		orchestration.StatusSpeaking:   lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true),
	}
)

type Model struct {
	ctx        context.Context
	controller Controller
	bridge     *screens.Bridge

	keys keyMap
	help help.Model

	status     orchestration.Status
	transcript string
	lastErr    error
	width      int
}

func NewModel(ctx context.Context, controller Controller, bridge *screens.Bridge) *Model {
	return &Model{
		ctx:        ctx,
		controller: controller,
		bridge:     bridge,
		keys:       defaultKeyMap(),
		help:       help.New(),
		status:     controller.Status(),
		width:      defaultWidth,
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case toggledMsg:
		if msg.err != nil {
			m.lastErr = msg.err
		}
		return m, nil

	case StatusMsg:
		if msg.Status == orchestration.StatusConnecting {
			m.lastErr = nil
			m.transcript = ""
		}
		m.status = msg.Status
		return m, nil

	case TextMsg:
		m.appendText(msg.Text)
		return m, nil

	case ErrorMsg:
		m.lastErr = msg.Err
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		ctx, controller := m.ctx, m.controller
		return m, func() tea.Msg {
			return toggledMsg{err: controller.Toggle(ctx)}
		}

	case key.Matches(msg, m.keys.Screens):
		m.switchScreen(int(msg.String()[0] - '1'))
		return m, nil
	}
	return m, nil
}

func (m *Model) switchScreen(index int) {
	entries := m.bridge.Screens()
	if index < 0 || index >= len(entries) {
		return
	}

	text, err := m.bridge.SetCurrent(entries[index].ID)
	if err != nil {
		m.lastErr = err
		return
	}
	m.controller.NotifyContextChanged(text)
}

func (m *Model) appendText(text string) {
	m.transcript += text
	if len(m.transcript) > maxTranscript {
		m.transcript = m.transcript[len(m.transcript)-maxTranscript:]
	}
}

func (m *Model) View() string {
	var b strings.Builder

	style, ok := statusStyles[m.status]
	if !ok {
		style = statusStyles[orchestration.StatusIdle]
	}
	fmt.Fprintf(&b, "%s  %s  %s\n\n",
		titleStyle.Render("ema-live"),
		style.Render("● "+m.status.String()),
		screenStyle.Render(m.screenTitle()),
	)

	for i, entry := range m.bridge.Screens() {
		if i >= 5 {
			break
		}
		marker := " "
		if entry.ID == m.bridge.Current() {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %d %s\n", marker, i+1, entry.Title)
	}
	b.WriteString("\n")

	if m.transcript != "" {
		b.WriteString(textStyle.Render(wordwrap.String(strings.TrimSpace(m.transcript), m.width)))
		b.WriteString("\n\n")
	}
	if m.lastErr != nil {
		b.WriteString(errorStyle.Render(wordwrap.String("error: "+m.lastErr.Error(), m.width)))
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m *Model) screenTitle() string {
	if entry, ok := m.bridge.Entry(m.bridge.Current()); ok && entry.Title != "" {
		return entry.Title
	}
	return m.bridge.Current().String()
}
