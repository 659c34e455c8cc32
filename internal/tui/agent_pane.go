package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dweebuild/dweebuild/internal/agent"
)

const agentListWidth = 22

// AgentPaneModel shows the roster and the selected agent's thought and log.
type AgentPaneModel struct {
	agents      []agent.State
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewAgentPaneModel creates a new agent pane model.
func NewAgentPaneModel() AgentPaneModel {
	return AgentPaneModel{viewport: viewport.New(0, 0)}
}

// Update handles messages for the agent pane.
func (m AgentPaneModel) Update(msg tea.Msg) (AgentPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.agents)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}
	}

	return m, cmd
}

// SetAgents replaces the displayed roster, keeping the selection by index.
func (m *AgentPaneModel) SetAgents(agents []agent.State) {
	m.agents = agents
	if m.selectedIdx >= len(agents) {
		m.selectedIdx = max(0, len(agents)-1)
	}
	m.updateViewportContent()
}

// Selected returns the selected agent's state.
func (m AgentPaneModel) Selected() (agent.State, bool) {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.agents) {
		return m.agents[m.selectedIdx], true
	}
	return agent.State{}, false
}

// View renders the agent pane.
func (m AgentPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderAgentList(agentListWidth),
		lipgloss.NewStyle().
			Width(m.width-agentListWidth-4).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m AgentPaneModel) renderAgentList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Agents")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.agents) == 0 {
		b.WriteString(StyleStatusPending.Render("No agents"))
	}
	for i, a := range m.agents {
		line := fmt.Sprintf("%s %s", StatusIcon(a.Status), truncate(a.Name, width-4))
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// updateViewportContent renders the selected agent into the viewport.
func (m *AgentPaneModel) updateViewportContent() {
	a, ok := m.Selected()
	if !ok {
		m.viewport.SetContent("Waiting for agents...")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", StyleTitle.Render(a.Role), a.Capability)
	fmt.Fprintf(&b, "Status: %s %s\n", StatusIcon(a.Status), a.Status)
	if a.CurrentTask != "" {
		fmt.Fprintf(&b, "Task:   %s\n", a.CurrentTask)
	}
	if a.Thought != "" {
		fmt.Fprintf(&b, "Thought: %s\n", a.Thought)
	}
	b.WriteString("\n")
	for _, l := range a.Log {
		b.WriteString(levelStyle(l.Level).Render(l.String()))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// SetSize updates the pane dimensions.
func (m *AgentPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = max(10, w-agentListWidth-4)
	m.viewport.Height = max(5, h-4)
}

// SetFocused updates the focus state.
func (m *AgentPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
