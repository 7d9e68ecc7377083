// SPDX-License-Identifier: Apache-2.0

// Package tui renders an editor.Session as a terminal form.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adiadia/featuredesk/internal/editor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	fieldCategory = iota
	fieldName
	fieldDescription
	fieldPriority
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldCategory:    "Category",
	fieldName:        "Name",
	fieldDescription: "Description",
	fieldPriority:    "Priority",
}

// submitResultMsg carries the settled mutation back into Update.
type submitResultMsg struct {
	result editor.Result
}

type stepInput struct {
	localID string
	input   textinput.Model
}

// Model is the bubbletea model for one edit session. Focus indexes the four
// scalar fields first, then the step rows in order.
type Model struct {
	ctx     context.Context
	session *editor.Session

	fields [fieldCount]textinput.Model
	steps  []stepInput
	focus  int

	keys   keyMap
	help   help.Model
	notice string
	width  int
}

func New(ctx context.Context, session *editor.Session) Model {
	if ctx == nil {
		ctx = context.Background()
	}

	snap := session.Snapshot()
	values := [fieldCount]string{
		fieldCategory:    snap.Buffer.Category,
		fieldName:        snap.Buffer.Name,
		fieldDescription: snap.Buffer.Description,
		fieldPriority:    snap.Buffer.PriorityText,
	}

	m := Model{
		ctx:     ctx,
		session: session,
		keys:    newKeyMap(),
		help:    help.New(),
	}
	for i := range m.fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 500
		ti.Width = 60
		ti.SetValue(values[i])
		m.fields[i] = ti
	}
	m.fields[fieldPriority].CharLimit = 12
	m.fields[fieldPriority].Width = 12

	m.syncSteps(snap.Buffer.Steps)
	m.setFocus(0)
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case submitResultMsg:
		if err := m.session.Complete(msg.result); err != nil {
			return m, nil
		}
		if m.session.State() == editor.StateDone {
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""

	switch {
	case key.Matches(msg, m.keys.quit):
		if m.session.State() == editor.StateSubmitting {
			m.notice = "Saving, please wait"
			return m, nil
		}
		m.session.Cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.back):
		if m.session.DismissError() {
			return m, nil
		}
		if m.session.Cancel() {
			return m, tea.Quit
		}
		return m, nil

	case key.Matches(msg, m.keys.submit):
		return m.submit()

	case key.Matches(msg, m.keys.next):
		m.setFocus(m.focus + 1)
		return m, nil

	case key.Matches(msg, m.keys.prev):
		m.setFocus(m.focus - 1)
		return m, nil

	case key.Matches(msg, m.keys.addStep):
		id := m.session.AddStep()
		if id == "" {
			return m, nil
		}
		m.syncSteps(m.session.Snapshot().Buffer.Steps)
		m.focusStep(id)
		return m, nil

	case key.Matches(msg, m.keys.removeStep):
		idx, ok := m.focusedStep()
		if !ok {
			return m, nil
		}
		if !m.session.RemoveStep(m.steps[idx].localID) {
			m.notice = "The last step row cannot be removed"
			return m, nil
		}
		m.syncSteps(m.session.Snapshot().Buffer.Steps)
		m.setFocus(min(m.focus, m.inputCount()-1))
		return m, nil

	case key.Matches(msg, m.keys.moveUp), key.Matches(msg, m.keys.moveDown):
		idx, ok := m.focusedStep()
		if !ok {
			return m, nil
		}
		delta := 1
		if key.Matches(msg, m.keys.moveUp) {
			delta = -1
		}
		id := m.steps[idx].localID
		if m.session.MoveStep(id, delta) {
			m.syncSteps(m.session.Snapshot().Buffer.Steps)
			m.focusStep(id)
		}
		return m, nil
	}

	return m.updateFocused(msg)
}

// submit starts the mutation as a command so the form keeps accepting input
// while it runs.
func (m Model) submit() (tea.Model, tea.Cmd) {
	sub, err := m.session.BeginSubmit()
	if err != nil {
		if errors.Is(err, editor.ErrSubmitNotAllowed) {
			m.notice = submitBlockedReason(m.session.Snapshot())
		}
		return m, nil
	}

	ctx := m.ctx
	return m, func() tea.Msg {
		return submitResultMsg{result: sub.Execute(ctx)}
	}
}

func submitBlockedReason(snap editor.Snapshot) string {
	switch {
	case snap.State == editor.StateSubmitting:
		return "Already saving"
	case !snap.Validity.Valid:
		return "Category, name and description are required"
	case !snap.Dirty:
		return "Nothing to save"
	default:
		return ""
	}
}

// updateFocused forwards msg to the focused input and pushes its value into
// the session.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if m.focus < fieldCount {
		before := m.fields[m.focus].Value()
		m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
		if value := m.fields[m.focus].Value(); value != before {
			m.setField(m.focus, value)
		}
		return m, cmd
	}

	idx, ok := m.focusedStep()
	if !ok {
		return m, nil
	}
	before := m.steps[idx].input.Value()
	m.steps[idx].input, cmd = m.steps[idx].input.Update(msg)
	if value := m.steps[idx].input.Value(); value != before {
		m.session.UpdateStep(m.steps[idx].localID, value)
	}
	return m, cmd
}

func (m *Model) setField(field int, value string) {
	switch field {
	case fieldCategory:
		m.session.SetCategory(value)
	case fieldName:
		m.session.SetName(value)
	case fieldDescription:
		m.session.SetDescription(value)
	case fieldPriority:
		m.session.SetPriorityText(value)
	}
}

// syncSteps rebuilds the step inputs from entries, reusing the input of any
// row that survived so its cursor is kept.
func (m *Model) syncSteps(entries []editor.StepEntry) {
	existing := make(map[string]textinput.Model, len(m.steps))
	for _, s := range m.steps {
		existing[s.localID] = s.input
	}

	steps := make([]stepInput, 0, len(entries))
	for _, e := range entries {
		ti, ok := existing[e.LocalID]
		if !ok {
			ti = textinput.New()
			ti.Prompt = ""
			ti.CharLimit = 500
			ti.Width = 56
			ti.Placeholder = "describe a step"
		}
		if ti.Value() != e.Value {
			ti.SetValue(e.Value)
		}
		ti.Blur()
		steps = append(steps, stepInput{localID: e.LocalID, input: ti})
	}
	m.steps = steps
}

func (m *Model) inputCount() int {
	return fieldCount + len(m.steps)
}

// setFocus moves focus to i, wrapping at both ends.
func (m *Model) setFocus(i int) {
	n := m.inputCount()
	i = ((i % n) + n) % n
	m.focus = i

	for f := range m.fields {
		if f == i {
			m.fields[f].Focus()
		} else {
			m.fields[f].Blur()
		}
	}
	for s := range m.steps {
		if fieldCount+s == i {
			m.steps[s].input.Focus()
		} else {
			m.steps[s].input.Blur()
		}
	}
}

func (m *Model) focusStep(localID string) {
	for i, s := range m.steps {
		if s.localID == localID {
			m.setFocus(fieldCount + i)
			return
		}
	}
}

func (m Model) focusedStep() (int, bool) {
	idx := m.focus - fieldCount
	if idx < 0 || idx >= len(m.steps) {
		return 0, false
	}
	return idx, true
}

func (m Model) View() string {
	snap := m.session.Snapshot()
	if snap.State == editor.StateDone {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Edit feature " + m.session.Original().Name))
	b.WriteString("\n")

	ok := [fieldCount]bool{
		fieldCategory:    snap.Validity.CategoryOK,
		fieldName:        snap.Validity.NameOK,
		fieldDescription: snap.Validity.DescriptionOK,
		fieldPriority:    true,
	}
	for i := range m.fields {
		b.WriteString(m.renderLabel(i, fieldLabels[i]))
		b.WriteString(m.fields[i].View())
		if !ok[i] {
			b.WriteString(" " + missingStyle.Render("required"))
		}
		if i == fieldPriority && !snap.Validity.PriorityOK {
			b.WriteString(" " + warnStyle.Render("not a whole number, the server will reject it"))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	for i, s := range m.steps {
		b.WriteString(m.renderLabel(fieldCount+i, fmt.Sprintf("Step %d", i+1)))
		b.WriteString(s.input.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch snap.State {
	case editor.StateSubmitting:
		b.WriteString(statusStyle.Render("Saving..."))
	case editor.StateError:
		b.WriteString(errorBoxStyle.Render(snap.ErrorMessage + "  (esc to dismiss)"))
	default:
		if snap.CanSubmit {
			b.WriteString(readyStyle.Render("Ready to save"))
		} else if !snap.Dirty {
			b.WriteString(statusStyle.Render("No changes"))
		} else {
			b.WriteString(statusStyle.Render("Fill in the required fields"))
		}
	}
	if m.notice != "" {
		b.WriteString("  " + warnStyle.Render(m.notice))
	}
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))

	return frameStyle.Render(b.String())
}

func (m Model) renderLabel(index int, label string) string {
	if index == m.focus {
		return focusedLabelStyle.Render("> " + label)
	}
	return labelStyle.Render("  " + label)
}

// Run drives session in a full-screen program until it is saved or canceled.
func Run(ctx context.Context, session *editor.Session, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(New(ctx, session), opts...)
	_, err := p.Run()
	return err
}
