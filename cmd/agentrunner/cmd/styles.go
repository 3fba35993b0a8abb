package cmd

import (
	"github.com/charmbracelet/lipgloss"
)

// Event styles
var (
	styleToolUse = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")).
			Bold(true)

	styleToolResult = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true)
)

// Status styles
var (
	styleOK = lipgloss.NewStyle().
		Foreground(lipgloss.Color("2")).
		Bold(true)

	styleMuted = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)
