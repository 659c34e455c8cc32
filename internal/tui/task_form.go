package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// SubmitFunc queues a task; priority > 0 puts it at the head.
type SubmitFunc func(task string, priority int) error

// TaskFormModel is the modal form for queueing a new task.
type TaskFormModel struct {
	form    *huh.Form
	submit  SubmitFunc
	width   int
	height  int
	visible bool
	err     error

	// Form field bindings
	task     string
	priority int
}

// NewTaskFormModel creates a hidden task form.
func NewTaskFormModel(submit SubmitFunc) TaskFormModel {
	m := TaskFormModel{submit: submit}
	m.buildForm()
	return m
}

func (m *TaskFormModel) buildForm() {
	m.task = ""
	m.priority = 0
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("task").
				Title("Task").
				Description("Prefix with Design:, Implement: or Verify: to pick an agent").
				Placeholder("Implement: a login form").
				Value(&m.task).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("task cannot be empty")
					}
					return nil
				}),

			huh.NewSelect[int]().
				Key("priority").
				Title("Priority").
				Options(
					huh.NewOption("Normal (end of queue)", 0),
					huh.NewOption("Urgent (head of queue)", 1),
				).
				Value(&m.priority),
		).Title("New Task"),
	)
	if m.width > 0 {
		m.form = m.form.WithWidth(m.width - 8)
	}
}

// Init initializes the form.
func (m TaskFormModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the form.
func (m TaskFormModel) Update(msg tea.Msg) (TaskFormModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == KeyEsc {
		m.visible = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		if err := m.submit(strings.TrimSpace(m.task), m.priority); err != nil {
			m.err = err
			return m, cmd
		}
		m.visible = false
	case huh.StateAborted:
		m.visible = false
	}
	return m, cmd
}

// View renders the form.
func (m TaskFormModel) View() string {
	if !m.visible {
		return ""
	}

	content := m.form.View()
	if m.err != nil {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ Could not queue task: %v", m.err))
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(max(20, m.width-4))

	return style.Render(content)
}

// SetSize updates the dimensions of the form.
func (m *TaskFormModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form = m.form.WithWidth(max(20, w-8))
	}
}

// SetVisible shows or hides the form. Showing it starts a fresh form.
func (m *TaskFormModel) SetVisible(v bool) {
	m.visible = v
	m.err = nil
	if v {
		m.buildForm()
	}
}

// IsVisible reports whether the form is open.
func (m TaskFormModel) IsVisible() bool {
	return m.visible
}
