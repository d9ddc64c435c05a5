package tui

import (
	"github.com/charmbracelet/lipgloss"

	"reqdash/internal/service"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	labelStyle    = lipgloss.NewStyle().Width(13)

	statusStyles = map[service.Status]lipgloss.Style{
		service.StatusNew:        lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		service.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		service.StatusDone:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
)

func statusStyle(s service.Status) lipgloss.Style {
	if st, ok := statusStyles[s]; ok {
		return st
	}
	return mutedStyle
}
