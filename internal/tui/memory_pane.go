package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dweebuild/dweebuild/internal/memory"
)

// MemoryPaneModel shows recent shared-memory entries.
type MemoryPaneModel struct {
	viewport viewport.Model
	entries  []memory.Entry
	follow   bool // keep the view pinned to the newest entry
	width    int
	height   int
	focused  bool
}

// NewMemoryPaneModel creates a new memory pane model.
func NewMemoryPaneModel() MemoryPaneModel {
	return MemoryPaneModel{viewport: viewport.New(0, 0), follow: true}
}

// Update handles messages for the memory pane.
func (m MemoryPaneModel) Update(msg tea.Msg) (MemoryPaneModel, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		// The viewport's own keymap covers j/k and paging.
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
	}
	return m, cmd
}

// SetEntries replaces the displayed entries.
func (m *MemoryPaneModel) SetEntries(entries []memory.Entry) {
	m.entries = entries
	var b strings.Builder
	for _, e := range entries {
		line := fmt.Sprintf("[%s] [%s] [%s] %s", e.Timestamp.Format("15:04:05"), e.Source, e.Level, e.Message)
		b.WriteString(levelStyle(e.Level).Render(line))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// View renders the memory pane.
func (m MemoryPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	title := StyleTitle.Render("System Logs")
	content := lipgloss.JoinVertical(lipgloss.Left, title, m.viewport.View())

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// SetSize updates the pane dimensions.
func (m *MemoryPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = max(10, w-4)
	m.viewport.Height = max(3, h-3)
}

// SetFocused updates the focus state.
func (m *MemoryPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
