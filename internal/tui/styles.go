package tui

import "github.com/charmbracelet/lipgloss"

type Styles struct {
	Header    lipgloss.Style
	Footer    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Body      lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Spinner   lipgloss.Style
	Input     lipgloss.Style
}

func DefaultStyles() Styles {
	accent := lipgloss.Color("#8B5CF6")
	primary := lipgloss.Color("#3B82F6")
	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F8FAFC")).
			Background(accent).
			Padding(0, 1),
		Footer:    lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B")),
		User:      lipgloss.NewStyle().Bold(true).Foreground(primary).MarginTop(1),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(accent).MarginTop(1),
		Body:      lipgloss.NewStyle().PaddingLeft(2),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8")).PaddingLeft(2),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).PaddingLeft(2),
		Spinner:   lipgloss.NewStyle().Foreground(accent),
		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
	}
}
