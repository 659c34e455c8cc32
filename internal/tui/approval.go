package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/dweebuild/dweebuild/internal/agent"
)

// ErrDashboardClosed is returned for approvals asked after the dashboard
// has exited.
var ErrDashboardClosed = errors.New("dashboard closed")

type approvalPrompt struct {
	req   agent.ApprovalRequest
	reply chan bool
}

// Approvals forwards approval requests from agents to the dashboard.
type Approvals struct {
	prompts chan approvalPrompt
	done    chan struct{}
	once    sync.Once
}

// NewApprovals creates an approval bridge.
func NewApprovals() *Approvals {
	return &Approvals{
		prompts: make(chan approvalPrompt),
		done:    make(chan struct{}),
	}
}

// Decide asks the operator and blocks until they answer. It satisfies
// agent.ApproveFunc.
func (a *Approvals) Decide(ctx context.Context, req agent.ApprovalRequest) (bool, error) {
	p := approvalPrompt{req: req, reply: make(chan bool, 1)}
	select {
	case a.prompts <- p:
	case <-a.done:
		return false, ErrDashboardClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-p.reply:
		return ok, nil
	case <-a.done:
		return false, ErrDashboardClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Close rejects pending and future requests.
func (a *Approvals) Close() {
	a.once.Do(func() { close(a.done) })
}

func (a *Approvals) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case p := <-a.prompts:
			return p
		case <-a.done:
			return nil
		}
	}
}

// approvalModel is the modal confirm shown for one request.
type approvalModel struct {
	prompt  approvalPrompt
	form    *huh.Form
	approve bool
	width   int
}

func newApprovalModel(p approvalPrompt, width int) *approvalModel {
	m := &approvalModel{prompt: p, width: width}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("%s wants to run %s", p.req.Agent, p.req.Tool)).
				Description(describeArgs(p.req)).
				Affirmative("Approve").
				Negative("Deny").
				Value(&m.approve),
		),
	)
	if width > 0 {
		m.form = m.form.WithWidth(max(20, width-8))
	}
	return m
}

// update returns true once the operator has answered.
func (m *approvalModel) update(msg tea.Msg) (bool, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		m.prompt.reply <- m.approve
		return true, cmd
	case huh.StateAborted:
		m.prompt.reply <- false
		return true, cmd
	}
	return false, cmd
}

func (m *approvalModel) view() string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("yellow")).
		Padding(1, 2).
		Width(max(20, m.width-4)).
		Render(m.form.View())
}

func describeArgs(req agent.ApprovalRequest) string {
	keys := make([]string, 0, len(req.Args))
	for k := range req.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s", req.Task)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, truncate(req.Args[k], 200))
	}
	return b.String()
}
