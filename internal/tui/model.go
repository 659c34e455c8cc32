// Package tui is the interactive dashboard: agents, task backlog and shared
// memory, updated from the event bus.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dweebuild/dweebuild/internal/events"
	"github.com/dweebuild/dweebuild/internal/orchestrator"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneAgents PaneID = iota
	PaneQueue
	PaneMemory
)

const paneCount = 3

// memoryLimit bounds the entries pulled into the memory pane.
const memoryLimit = 200

// refreshDelay batches bursts of events into one redraw.
const refreshDelay = 50 * time.Millisecond

// Controller is the part of the orchestrator the dashboard drives.
type Controller interface {
	Snapshot(memLimit int) orchestrator.Snapshot
	AddTask(task string, priority int) error
	RemoveTask(i int) (string, error)
	MoveTask(from, to int) error
	Start()
	Stop()
}

// refreshMsg asks the model to re-read the controller.
type refreshMsg struct {
	tag int
}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	ctrl        Controller
	agentPane   AgentPaneModel
	queuePane   QueuePaneModel
	memoryPane  MemoryPaneModel
	taskForm    TaskFormModel
	approvals   *Approvals
	approval    *approvalModel
	focusedPane PaneID
	eventSub    <-chan events.Event
	snapshot    orchestrator.Snapshot
	refreshTag  int
	width       int
	height      int
	quitting    bool
	lastErr     error
}

// New creates a new TUI model. It subscribes to every topic of bus; a nil
// approvals disables the approval modal.
func New(ctrl Controller, bus *events.Bus, approvals *Approvals) Model {
	m := Model{
		ctrl:        ctrl,
		agentPane:   NewAgentPaneModel(),
		queuePane:   NewQueuePaneModel(),
		memoryPane:  NewMemoryPaneModel(),
		taskForm:    NewTaskFormModel(ctrl.AddTask),
		approvals:   approvals,
		focusedPane: PaneAgents,
		eventSub:    bus.SubscribeAll(256),
	}
	m.refresh()
	m.updateFocusStates()
	return m
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForEvent(m.eventSub)}
	if m.approvals != nil {
		cmds = append(cmds, m.approvals.wait())
	}
	return tea.Batch(cmds...)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		// Modals take every key while open.
		if m.approval != nil {
			done, cmd := m.approval.update(msg)
			if done {
				m.approval = nil
				cmds = append(cmds, m.approvals.wait())
			}
			return m, tea.Batch(append(cmds, cmd)...)
		}
		if m.taskForm.IsVisible() {
			var cmd tea.Cmd
			m.taskForm, cmd = m.taskForm.Update(msg)
			if !m.taskForm.IsVisible() {
				m.refresh()
			}
			return m, cmd
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.taskForm.SetSize(msg.Width, msg.Height)

	case approvalPrompt:
		m.approval = newApprovalModel(msg, m.width)
		cmds = append(cmds, m.approval.form.Init())

	case events.Event:
		m.refreshTag++
		tag := m.refreshTag
		cmds = append(cmds,
			tea.Tick(refreshDelay, func(time.Time) tea.Msg { return refreshMsg{tag: tag} }),
			waitForEvent(m.eventSub),
		)

	case refreshMsg:
		if msg.tag == m.refreshTag {
			m.refresh()
		}

	default:
		// huh forms emit their own internal messages.
		if m.approval != nil {
			done, cmd := m.approval.update(msg)
			if done {
				m.approval = nil
				cmds = append(cmds, m.approvals.wait())
			}
			cmds = append(cmds, cmd)
		} else if m.taskForm.IsVisible() {
			var cmd tea.Cmd
			m.taskForm, cmd = m.taskForm.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.lastErr = nil

	switch msg.String() {
	case KeyQuit:
		m.quitting = true
		return m, tea.Quit

	case KeyNewTask:
		m.taskForm.SetVisible(true)
		m.taskForm.SetSize(m.width, m.height)
		return m, m.taskForm.Init()

	case KeyPause:
		if m.snapshot.Running {
			m.ctrl.Stop()
		} else {
			m.ctrl.Start()
		}
		m.refresh()

	case KeyTab:
		m.focusedPane = (m.focusedPane + 1) % paneCount
		m.updateFocusStates()

	case KeyShiftTab:
		m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
		m.updateFocusStates()

	case KeyPane1:
		m.focusedPane = PaneAgents
		m.updateFocusStates()

	case KeyPane2:
		m.focusedPane = PaneQueue
		m.updateFocusStates()

	case KeyPane3:
		m.focusedPane = PaneMemory
		m.updateFocusStates()

	case KeyRemove:
		if m.focusedPane == PaneQueue {
			if i := m.queuePane.Selected(); i >= 0 {
				_, m.lastErr = m.ctrl.RemoveTask(i)
				m.refresh()
			}
		}

	case KeyMoveUp, KeyMoveDown:
		if m.focusedPane == PaneQueue {
			if i := m.queuePane.Selected(); i >= 0 {
				to := i - 1
				if msg.String() == KeyMoveDown {
					to = i + 1
				}
				if m.lastErr = m.ctrl.MoveTask(i, to); m.lastErr == nil {
					m.refresh()
					m.queuePane.Select(to)
				}
			}
		}

	default:
		switch m.focusedPane {
		case PaneAgents:
			m.agentPane, cmd = m.agentPane.Update(msg)
		case PaneQueue:
			m.queuePane, cmd = m.queuePane.Update(msg)
		case PaneMemory:
			m.memoryPane, cmd = m.memoryPane.Update(msg)
		}
	}
	return m, cmd
}

// refresh re-reads the controller into every pane.
func (m *Model) refresh() {
	m.snapshot = m.ctrl.Snapshot(memoryLimit)
	m.agentPane.SetAgents(m.snapshot.Agents)
	m.queuePane.SetSnapshot(m.snapshot)
	m.memoryPane.SetEntries(m.snapshot.Memory)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.approval != nil {
		return m.approval.view()
	}
	if m.taskForm.IsVisible() {
		return m.taskForm.View()
	}

	right := lipgloss.JoinVertical(lipgloss.Left, m.queuePane.View(), m.memoryPane.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.agentPane.View(), right)

	help := HelpView()
	if m.lastErr != nil {
		help = StyleStatusFailed.Render(m.lastErr.Error())
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, help)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 40) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1 // help bar
	queueHeight := (availableHeight * 40) / 100

	m.agentPane.SetSize(leftWidth, availableHeight)
	m.queuePane.SetSize(rightWidth, queueHeight)
	m.memoryPane.SetSize(rightWidth, availableHeight-queueHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.agentPane.SetFocused(m.focusedPane == PaneAgents)
	m.queuePane.SetFocused(m.focusedPane == PaneQueue)
	m.memoryPane.SetFocused(m.focusedPane == PaneMemory)
}
