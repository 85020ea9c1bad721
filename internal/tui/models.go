package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/runnerr0/codepulse/internal/selector"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	selectedStyle = lipgloss.NewStyle().Bold(true)
)

// pickOneModel is a single-choice list.
type pickOneModel struct {
	placeholder string
	items       []selector.Item
	cursor      int
	chosen      bool
	cancelled   bool
}

func newPickOne(placeholder string, items []selector.Item) pickOneModel {
	return pickOneModel{placeholder: placeholder, items: items}
}

func (m pickOneModel) Init() tea.Cmd { return nil }

func (m pickOneModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc", "q":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.items) == 0 {
			m.cancelled = true
		} else {
			m.chosen = true
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m pickOneModel) View() string {
	if m.chosen || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.placeholder))
	b.WriteString("\n\n")
	for i, it := range m.items {
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> " + it.Label))
		} else {
			b.WriteString("  " + it.Label)
		}
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("\n↑/↓ move • enter select • esc cancel"))
	return b.String()
}

// pickManyModel is a checkbox list; every box starts in its Checked state.
type pickManyModel struct {
	placeholder string
	boxes       []selector.Checkbox
	checked     []bool
	cursor      int
	confirmed   bool
	cancelled   bool
}

func newPickMany(placeholder string, boxes []selector.Checkbox) pickManyModel {
	checked := make([]bool, len(boxes))
	for i, b := range boxes {
		checked[i] = b.Checked
	}
	return pickManyModel{placeholder: placeholder, boxes: boxes, checked: checked}
}

func (m pickManyModel) Init() tea.Cmd { return nil }

func (m pickManyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc", "q":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.boxes)-1 {
			m.cursor++
		}
	case " ", "space", "x":
		if len(m.checked) > 0 {
			m.checked[m.cursor] = !m.checked[m.cursor]
		}
	case "a":
		all := !m.allChecked()
		for i := range m.checked {
			m.checked[i] = all
		}
	case "enter":
		m.confirmed = true
		return m, tea.Quit
	}
	return m, nil
}

func (m pickManyModel) allChecked() bool {
	for _, c := range m.checked {
		if !c {
			return false
		}
	}
	return true
}

// selected returns the checked boxes in display order.
func (m pickManyModel) selected() []selector.Checkbox {
	var out []selector.Checkbox
	for i, b := range m.boxes {
		if m.checked[i] {
			out = append(out, b)
		}
	}
	return out
}

func (m pickManyModel) View() string {
	if m.confirmed || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.placeholder))
	b.WriteString("\n\n")
	for i, box := range m.boxes {
		mark := "[ ]"
		if m.checked[i] {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s %s", mark, box.Label, dimStyle.Render(box.Text))
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> ") + selectedStyle.Render(line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("\n↑/↓ move • space toggle • a all • enter confirm • esc cancel"))
	return b.String()
}

// inputModel is a single-line prompt that stays open until validate passes.
type inputModel struct {
	prompt    string
	input     textinput.Model
	validate  func(string) string
	errMsg    string
	confirmed bool
	cancelled bool
}

func newInput(prompt, placeholder, value string, validate func(string) string) inputModel {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.SetValue(value)
	ti.CharLimit = 64
	ti.Focus()
	if validate == nil {
		validate = func(string) string { return "" }
	}
	return inputModel{prompt: prompt, input: ti, validate: validate}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		case "enter":
			if msg := m.validate(m.value()); msg != "" {
				m.errMsg = msg
				return m, nil
			}
			m.errMsg = ""
			m.confirmed = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) value() string {
	return strings.TrimSpace(m.input.Value())
}

func (m inputModel) View() string {
	if m.confirmed || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.prompt))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString(errorStyle.Render(m.errMsg))
		b.WriteString("\n")
	}
	return b.String()
}
