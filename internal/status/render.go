package status

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	aboveStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	belowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	pausedStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("241"))
	tipStyle    = lipgloss.NewStyle().Faint(true)
)

// Render formats st for a terminal, text on the first line and tooltip on
// the second.
func Render(st Status) string {
	style := belowStyle
	switch {
	case st.Paused:
		style = pausedStyle
	case st.Indicator == AboveAverage:
		style = aboveStyle
	}
	out := style.Render(st.Text)
	if st.Tooltip != "" {
		out += "\n" + tipStyle.Render(st.Tooltip)
	}
	return out
}

// TerminalBar prints status changes through a callback. It satisfies
// StatusBar for terminal hosts.
type TerminalBar struct {
	Print func(string)
}

func (b TerminalBar) SetStatus(text, tooltip string) {
	if b.Print == nil {
		return
	}
	st := Status{Text: text, Tooltip: tooltip}
	b.Print(Render(st))
}
