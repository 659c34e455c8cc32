package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dweebuild/dweebuild/internal/agent"
	"github.com/dweebuild/dweebuild/internal/memory"
)

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// Status styles
var (
	StyleStatusRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	StyleStatusComplete = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	StyleStatusFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	StyleStatusPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	StyleDebug = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	StyleSelected = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))

	StyleBanner = lipgloss.NewStyle().
			Background(lipgloss.Color("red")).
			Foreground(lipgloss.Color("15")).
			Bold(true).
			Padding(0, 1)
)

// StatusIcon returns a styled indicator for an agent status.
func StatusIcon(s agent.Status) string {
	switch s {
	case agent.StatusWorking:
		return StyleStatusRunning.Render("●")
	case agent.StatusSuccess:
		return StyleStatusComplete.Render("✓")
	case agent.StatusError:
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

// levelStyle picks the style for a memory level.
func levelStyle(l memory.Level) lipgloss.Style {
	switch l {
	case memory.LevelSuccess:
		return StyleStatusComplete
	case memory.LevelWarn:
		return StyleStatusRunning
	case memory.LevelError:
		return StyleStatusFailed
	case memory.LevelDebug:
		return StyleDebug
	default:
		return lipgloss.NewStyle()
	}
}

func truncate(s string, width int) string {
	if width <= 3 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
