package ui

import "github.com/charmbracelet/lipgloss"

// Palette: plain text by default, a soft purple accent for keys and
// resource names, gray for secondary info. Status is carried by symbols,
// not colors.
var (
	// Accent highlights resource and field names.
	Accent = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))

	// Muted is for hints, counts, and null cells.
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))

	Bold = lipgloss.NewStyle().Bold(true)

	// HeaderCell styles column headers in result tables.
	HeaderCell = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA")).Bold(true)
)
