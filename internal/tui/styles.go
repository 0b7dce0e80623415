package tui

import "github.com/charmbracelet/lipgloss"

// Row statuses.
const (
	StatusPending   = "pending"
	StatusResolving = "resolving"
	StatusReady     = "ready"
	StatusFailed    = "failed"
)

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	// SpinnerStyle colors the footer spinner.
	SpinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))

	statusStyles = map[string]lipgloss.Style{
		StatusReady:     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		StatusResolving: lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		StatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		StatusPending:   lipgloss.NewStyle().Faint(true),
	}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
