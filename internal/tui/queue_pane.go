package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dweebuild/dweebuild/internal/orchestrator"
)

// QueuePaneModel shows the ordered backlog and the loop state.
type QueuePaneModel struct {
	tasks       []string
	stalled     string
	mode        orchestrator.Mode
	running     bool
	iteration   int
	selectedIdx int
	width       int
	height      int
	focused     bool
}

// NewQueuePaneModel creates a new queue pane model.
func NewQueuePaneModel() QueuePaneModel {
	return QueuePaneModel{}
}

// Update handles messages for the queue pane.
func (m QueuePaneModel) Update(msg tea.Msg) (QueuePaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.tasks)-1 {
				m.selectedIdx++
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
			}
		}
	}
	return m, nil
}

// SetSnapshot refreshes the pane from a session snapshot.
func (m *QueuePaneModel) SetSnapshot(s orchestrator.Snapshot) {
	m.tasks = s.Queue
	m.stalled = s.StalledTask
	m.mode = s.Mode
	m.running = s.Running
	m.iteration = s.Iteration
	if m.selectedIdx >= len(m.tasks) {
		m.selectedIdx = max(0, len(m.tasks)-1)
	}
}

// Selected returns the index of the selected task, or -1 when the queue is
// empty.
func (m QueuePaneModel) Selected() int {
	if len(m.tasks) == 0 {
		return -1
	}
	return m.selectedIdx
}

// Select moves the selection, clamped to the queue.
func (m *QueuePaneModel) Select(i int) {
	m.selectedIdx = min(max(0, i), max(0, len(m.tasks)-1))
}

// View renders the queue pane.
func (m QueuePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Task Backlog")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n")

	state := StyleStatusPending.Render("PAUSED")
	if m.running {
		state = StyleStatusRunning.Render("RUNNING")
	}
	fmt.Fprintf(&b, "%s  %s  iteration %d  queued %d\n\n", m.mode, state, m.iteration, len(m.tasks))

	if m.stalled != "" {
		b.WriteString(StyleBanner.Render("STALLED: no agent accepts " + truncate(m.stalled, m.width-30)))
		b.WriteString("\n\n")
	}

	if len(m.tasks) == 0 {
		b.WriteString(StyleStatusPending.Render("Queue empty"))
	}
	for i, t := range m.tasks {
		line := fmt.Sprintf("%d. %s", i+1, truncate(t, m.width-10))
		if m.focused && i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *QueuePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *QueuePaneModel) SetFocused(focused bool) {
	m.focused = focused
}
