package ui

import (
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vinayprograms/contui/internal/agent"
)

type fakeController struct {
	submitted []string
	sent      []string
	confirmed []bool
	cancels   int
	cleared   int
	running   bool
}

func (f *fakeController) Submit(msg string) bool {
	f.submitted = append(f.submitted, msg)
	return true
}

func (f *fakeController) Send(msg string) bool {
	f.sent = append(f.sent, msg)
	return true
}

func (f *fakeController) Cancel() bool {
	f.cancels++
	return f.running
}

func (f *fakeController) ConfirmCommand(approve bool) bool {
	f.confirmed = append(f.confirmed, approve)
	return true
}

func (f *fakeController) ClearHistory() { f.cleared++ }

func newTestModel(t *testing.T) (Model, *fakeController) {
	t.Helper()
	ctrl := &fakeController{}
	m := New(ctrl, nil, nil, Options{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(Model), ctrl
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func typeAndEnter(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.input.SetValue(text)
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestEnter_SubmitsInput(t *testing.T) {
	m, ctrl := newTestModel(t)
	m = typeAndEnter(t, m, "add a README")

	if len(ctrl.submitted) != 1 || ctrl.submitted[0] != "add a README" {
		t.Fatalf("submitted = %v", ctrl.submitted)
	}
	if !m.busy {
		t.Error("expected busy after submit")
	}
	if m.input.Value() != "" {
		t.Errorf("input not reset: %q", m.input.Value())
	}
}

func TestEnter_BlankIgnored(t *testing.T) {
	m, ctrl := newTestModel(t)
	m = typeAndEnter(t, m, "   ")
	if len(ctrl.submitted) != 0 || m.busy {
		t.Errorf("blank input should not submit: %v", ctrl.submitted)
	}
}

func TestEnter_QueuesWhileBusy(t *testing.T) {
	m, ctrl := newTestModel(t)
	m = typeAndEnter(t, m, "first")
	m = typeAndEnter(t, m, "second")

	if len(ctrl.submitted) != 2 {
		t.Fatalf("submitted = %v", ctrl.submitted)
	}
	if m.queued != 1 {
		t.Errorf("queued = %d, want 1", m.queued)
	}

	m = update(t, m, eventMsg{Type: agent.EventFinal, Text: "done one"})
	if !m.busy || m.queued != 0 {
		t.Errorf("after first final: busy=%v queued=%d", m.busy, m.queued)
	}
	m = update(t, m, eventMsg{Type: agent.EventFinal, Text: "done two"})
	if m.busy {
		t.Error("expected idle after last session")
	}
}

func TestCtrlS_Preempts(t *testing.T) {
	m, ctrl := newTestModel(t)
	m.input.SetValue("stop and do this")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})

	if len(ctrl.sent) != 1 || ctrl.sent[0] != "stop and do this" {
		t.Fatalf("sent = %v", ctrl.sent)
	}
	if len(ctrl.submitted) != 0 {
		t.Errorf("Send should not go through Submit: %v", ctrl.submitted)
	}
}

func TestEsc_Cancels(t *testing.T) {
	m, ctrl := newTestModel(t)
	ctrl.running = true
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if ctrl.cancels != 1 {
		t.Errorf("cancels = %d", ctrl.cancels)
	}
	if m.status != "cancelled" {
		t.Errorf("status = %q", m.status)
	}
}

func TestConfirm_Approve(t *testing.T) {
	m, ctrl := newTestModel(t)
	m = update(t, m, eventMsg{Type: agent.EventConfirmCommand, Command: "go test ./..."})
	if m.confirm != "go test ./..." {
		t.Fatalf("confirm = %q", m.confirm)
	}
	if !strings.Contains(m.View(), "[y/n]") {
		t.Error("view should prompt for an answer")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	if len(ctrl.confirmed) != 1 || !ctrl.confirmed[0] {
		t.Fatalf("confirmed = %v", ctrl.confirmed)
	}
	if m.confirm != "" {
		t.Error("confirmation should be cleared")
	}
	if m.input.Value() != "" {
		t.Errorf("answer key leaked into input: %q", m.input.Value())
	}
}

func TestConfirm_Reject(t *testing.T) {
	m, ctrl := newTestModel(t)
	m = update(t, m, eventMsg{Type: agent.EventConfirmCommand, Command: "rm -rf build"})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	if len(ctrl.confirmed) != 1 || ctrl.confirmed[0] {
		t.Fatalf("confirmed = %v", ctrl.confirmed)
	}
	last := m.entries[len(m.entries)-1]
	if !strings.Contains(last.text, "rejected") {
		t.Errorf("last entry = %q", last.text)
	}
}

func TestConfirm_OtherKeysIgnored(t *testing.T) {
	m, ctrl := newTestModel(t)
	m = update(t, m, eventMsg{Type: agent.EventConfirmCommand, Command: "make"})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if len(ctrl.confirmed) != 0 || m.confirm != "make" {
		t.Errorf("unexpected answer: %v, pending %q", ctrl.confirmed, m.confirm)
	}
}

func TestClearCommand(t *testing.T) {
	m, ctrl := newTestModel(t)
	m = update(t, m, eventMsg{Type: agent.EventProgress, Text: "Step 1: querying model..."})
	m = typeAndEnter(t, m, "/clear")

	if ctrl.cleared != 1 {
		t.Errorf("cleared = %d", ctrl.cleared)
	}
	if len(m.entries) != 0 {
		t.Errorf("entries = %d, want 0", len(m.entries))
	}
	if len(ctrl.submitted) != 0 {
		t.Errorf("/clear should not be submitted: %v", ctrl.submitted)
	}
}

func TestEvents_Rendered(t *testing.T) {
	m, _ := newTestModel(t)
	m = typeAndEnter(t, m, "hello")
	m = update(t, m, eventMsg{Type: agent.EventProgress, Text: "Step 1: querying model..."})
	m = update(t, m, eventMsg{Type: agent.EventError, Text: "model request timed out"})

	out := m.render()
	for _, want := range []string{"hello", "Step 1: querying model...", "error: model request timed out"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
	if m.busy {
		t.Error("error should end the session")
	}
}

func TestStepLimitWarning(t *testing.T) {
	m, _ := newTestModel(t)
	m = typeAndEnter(t, m, "loop")
	m = update(t, m, eventMsg{Type: agent.EventProgress, Warning: true, Text: "still going"})

	last := m.entries[len(m.entries)-1]
	if last.kind != entryWarning || !strings.Contains(last.text, "still going") {
		t.Errorf("last entry = %+v", last)
	}
	if m.busy {
		t.Error("warning should end the session")
	}
}

func TestDirChanged_SetsStatus(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m, dirChangedMsg{})
	if m.status == "" {
		t.Error("expected a status after a directory change")
	}
}

func TestEventsClosed_Quits(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(eventsClosedMsg{})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestUpDown_RecallsInputs(t *testing.T) {
	m, _ := newTestModel(t)
	m = typeAndEnter(t, m, "first")
	m = typeAndEnter(t, m, "second")
	m.input.SetValue("draft")

	up := tea.KeyMsg{Type: tea.KeyUp}
	down := tea.KeyMsg{Type: tea.KeyDown}

	m = update(t, m, up)
	if m.input.Value() != "second" {
		t.Errorf("first Up = %q, want second", m.input.Value())
	}
	m = update(t, m, up)
	m = update(t, m, up)
	if m.input.Value() != "first" {
		t.Errorf("Up past the oldest entry = %q, want first", m.input.Value())
	}
	m = update(t, m, down)
	if m.input.Value() != "second" {
		t.Errorf("Down = %q, want second", m.input.Value())
	}
	m = update(t, m, down)
	if m.input.Value() != "draft" {
		t.Errorf("Down past the newest entry should restore the draft, got %q", m.input.Value())
	}
	m = update(t, m, down)
	if m.input.Value() != "draft" {
		t.Errorf("extra Down changed the input: %q", m.input.Value())
	}
}

func TestRecall_CappedAtFifty(t *testing.T) {
	m, _ := newTestModel(t)
	for i := 0; i < 60; i++ {
		m = typeAndEnter(t, m, fmt.Sprintf("msg %d", i))
	}
	if len(m.recall) != 50 {
		t.Fatalf("recall holds %d entries, want 50", len(m.recall))
	}
	if m.recall[0] != "msg 10" || m.recall[49] != "msg 59" {
		t.Errorf("expected the newest 50, got %q..%q", m.recall[0], m.recall[49])
	}

	up := tea.KeyMsg{Type: tea.KeyUp}
	for i := 0; i < 60; i++ {
		m = update(t, m, up)
	}
	if m.input.Value() != "msg 10" {
		t.Errorf("oldest recall = %q, want msg 10", m.input.Value())
	}
}

func TestRecall_SkipsRepeats(t *testing.T) {
	m, _ := newTestModel(t)
	m = typeAndEnter(t, m, "same")
	m = typeAndEnter(t, m, "same")
	if len(m.recall) != 1 {
		t.Errorf("repeated input stored %d times", len(m.recall))
	}
}
