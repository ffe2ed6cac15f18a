// Package style provides consistent terminal styling using Lipgloss.
package style

import "github.com/charmbracelet/lipgloss"

var (
	// Success style for applied changes
	Success = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10")). // Green
		Bold(true)

	// Error style for failed users and fatal errors
	Error = lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")). // Red
		Bold(true)

	// Dim style for users that needed nothing
	Dim = lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")) // Gray

	// Bold style for the run summary
	Bold = lipgloss.NewStyle().
		Bold(true)

	// ChangedPrefix marks a line describing a write
	ChangedPrefix = Success.Render("✓")

	// UnchangedPrefix marks a user already in the desired state
	UnchangedPrefix = Dim.Render("·")

	// SkippedPrefix marks a user not attempted after an abort
	SkippedPrefix = Dim.Render("-")

	// ErrorPrefix is the error prefix
	ErrorPrefix = Error.Render("✗")
)
