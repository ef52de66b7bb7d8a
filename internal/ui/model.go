// Package ui is the interactive chat front end.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	"github.com/vinayprograms/contui/internal/agent"
)

// Controller is the part of the orchestrator the UI drives.
type Controller interface {
	Submit(msg string) bool
	Send(msg string) bool
	Cancel() bool
	ConfirmCommand(approve bool) bool
	ClearHistory()
}

// Options configures the chat view.
type Options struct {
	Title     string
	WrapWidth int // 0 = viewport width
}

type entryKind int

const (
	entryUser entryKind = iota
	entryProgress
	entryFinal
	entryWarning
	entryError
	entrySystem
)

type entry struct {
	kind entryKind
	text string
}

type eventMsg agent.Event

type eventsClosedMsg struct{}

type dirChangedMsg struct{}

// Model is the bubbletea model for a chat session.
type Model struct {
	ctrl    Controller
	events  <-chan agent.Event
	changes <-chan struct{}
	opts    Options

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	entries []entry
	busy    bool
	queued  int
	confirm string // command awaiting an answer
	status  string

	// recall: sent inputs, oldest first; pos == len(recall) means editing
	recall    []string
	recallPos int
	draft     string

	width  int
	height int
}

const (
	inputHeight = 3
	recallLimit = 50
)

// New builds the chat model. changes may be nil.
func New(ctrl Controller, events <-chan agent.Event, changes <-chan struct{}, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "contui"
	}
	ta := textarea.New()
	ta.Placeholder = "Ask for a change. Enter sends, Ctrl+S interrupts, Esc cancels."
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = progressStyle

	return Model{
		ctrl:     ctrl,
		events:   events,
		changes:  changes,
		opts:     opts,
		input:    ta,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
}

// Run starts the program on the alternate screen and blocks until exit.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func waitForEvent(ch <-chan agent.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return dirChangedMsg{}
	}
}

// Init starts the listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, waitForEvent(m.events), waitForChange(m.changes))
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-inputHeight-4)
		m.refresh()
		return m, nil

	case eventMsg:
		m.handleEvent(agent.Event(msg))
		m.refresh()
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		return m, tea.Quit

	case dirChangedMsg:
		m.status = "working directory changed"
		return m, waitForChange(m.changes)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.confirm != "" {
			return m.handleConfirmKey(msg)
		}
		switch msg.String() {
		case "ctrl+c":
			m.ctrl.Cancel()
			return m, tea.Quit
		case "esc":
			if m.ctrl.Cancel() {
				m.status = "cancelled"
			}
			return m, nil
		case "enter":
			m.submit(false)
			m.refresh()
			return m, nil
		case "ctrl+s":
			m.submit(true)
			m.refresh()
			return m, nil
		case "up":
			m.recallPrev()
			return m, nil
		case "down":
			m.recallNext()
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.ctrl.Cancel()
		return m, tea.Quit
	case "y", "Y":
		m.answer(true)
	case "n", "N", "esc":
		m.answer(false)
	}
	m.refresh()
	return m, nil
}

func (m *Model) answer(approve bool) {
	cmd := m.confirm
	m.confirm = ""
	if !m.ctrl.ConfirmCommand(approve) {
		m.add(entryError, "confirmation no longer pending")
		return
	}
	if approve {
		m.add(entrySystem, "approved: "+cmd)
	} else {
		m.add(entrySystem, "rejected: "+cmd)
	}
}

// submit sends the input. preempt interrupts a running session instead of
// queueing behind it.
func (m *Model) submit(preempt bool) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	m.input.Reset()
	m.remember(text)

	if text == "/clear" {
		m.entries = nil
		m.ctrl.ClearHistory()
		m.status = "conversation cleared"
		return
	}

	switch {
	case preempt:
		if m.ctrl.Send(text) {
			m.add(entryUser, text)
			m.busy = true
		}
	case m.busy:
		if m.ctrl.Submit(text) {
			m.queued++
			m.add(entryUser, text+" (queued)")
		}
	default:
		if m.ctrl.Submit(text) {
			m.add(entryUser, text)
			m.busy = true
		}
	}
}

// remember appends text to the recall list, dropping the oldest entry past
// recallLimit. Repeating the previous input is not stored twice.
func (m *Model) remember(text string) {
	if n := len(m.recall); n == 0 || m.recall[n-1] != text {
		m.recall = append(m.recall, text)
		if len(m.recall) > recallLimit {
			m.recall = append([]string(nil), m.recall[len(m.recall)-recallLimit:]...)
		}
	}
	m.recallPos = len(m.recall)
	m.draft = ""
}

func (m *Model) recallPrev() {
	if m.recallPos == 0 {
		return
	}
	if m.recallPos == len(m.recall) {
		m.draft = m.input.Value()
	}
	m.recallPos--
	m.input.SetValue(m.recall[m.recallPos])
}

func (m *Model) recallNext() {
	if m.recallPos >= len(m.recall) {
		return
	}
	m.recallPos++
	if m.recallPos == len(m.recall) {
		m.input.SetValue(m.draft)
		return
	}
	m.input.SetValue(m.recall[m.recallPos])
}

func (m *Model) handleEvent(ev agent.Event) {
	switch ev.Type {
	case agent.EventProgress:
		if ev.Warning {
			m.add(entryWarning, fmt.Sprintf("Step limit reached without a finish signal. Last response:\n%s", ev.Text))
			m.sessionEnded()
			return
		}
		m.add(entryProgress, ev.Text)
	case agent.EventFinal:
		m.add(entryFinal, ev.Text)
		m.sessionEnded()
	case agent.EventError:
		m.add(entryError, ev.Text)
		m.sessionEnded()
	case agent.EventConfirmCommand:
		m.confirm = ev.Command
		m.add(entrySystem, "The assistant wants to run:\n  "+ev.Command)
	case agent.EventDirectoryChanged:
		m.status = "files changed"
	}
}

func (m *Model) sessionEnded() {
	m.confirm = ""
	if m.queued > 0 {
		m.queued--
		return
	}
	m.busy = false
}

func (m *Model) add(kind entryKind, text string) {
	m.entries = append(m.entries, entry{kind: kind, text: text})
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func (m Model) render() string {
	width := m.opts.WrapWidth
	if width <= 0 {
		width = m.viewport.Width
	}
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		text := wordwrap.String(e.text, max(20, width-2))
		switch e.kind {
		case entryUser:
			b.WriteString(userStyle.Render("> " + text))
		case entryProgress:
			b.WriteString(progressStyle.Render(text))
		case entryFinal:
			b.WriteString(finalStyle.Render(text))
		case entryWarning:
			b.WriteString(warnStyle.Render(text))
		case entryError:
			b.WriteString(errorStyle.Render("error: " + text))
		case entrySystem:
			b.WriteString(systemStyle.Render(text))
		}
	}
	return b.String()
}

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.opts.Title))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

func (m Model) statusLine() string {
	if m.confirm != "" {
		return confirmStyle.Render("Run this command? [y/n]")
	}
	var parts []string
	if m.busy {
		parts = append(parts, m.spinner.View()+" working")
	}
	if m.queued > 0 {
		parts = append(parts, fmt.Sprintf("%d queued", m.queued))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	return dimStyle.Render(strings.Join(parts, " · "))
}
