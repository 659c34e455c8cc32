package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dweebuild/dweebuild/internal/agent"
	"github.com/dweebuild/dweebuild/internal/events"
	"github.com/dweebuild/dweebuild/internal/memory"
	"github.com/dweebuild/dweebuild/internal/orchestrator"
	"github.com/dweebuild/dweebuild/internal/scheduler"
)

type fakeController struct {
	snap      orchestrator.Snapshot
	snapshots int
	added     []string
	removed   []int
	moved     [][2]int
	started   int
	stopped   int
}

func (f *fakeController) Snapshot(int) orchestrator.Snapshot {
	f.snapshots++
	s := f.snap
	s.Queue = append([]string(nil), f.snap.Queue...)
	return s
}

func (f *fakeController) AddTask(task string, priority int) error {
	f.added = append(f.added, task)
	return nil
}

func (f *fakeController) RemoveTask(i int) (string, error) {
	if i >= len(f.snap.Queue) {
		return "", errors.New("index out of range")
	}
	f.removed = append(f.removed, i)
	task := f.snap.Queue[i]
	f.snap.Queue = append(f.snap.Queue[:i], f.snap.Queue[i+1:]...)
	return task, nil
}

func (f *fakeController) MoveTask(from, to int) error {
	if to < 0 || to >= len(f.snap.Queue) {
		return errors.New("index out of range")
	}
	f.moved = append(f.moved, [2]int{from, to})
	return nil
}

func (f *fakeController) Start() { f.started++; f.snap.Running = true }
func (f *fakeController) Stop()  { f.stopped++; f.snap.Running = false }

func newTestModel(t *testing.T) (Model, *fakeController) {
	t.Helper()
	fc := &fakeController{snap: orchestrator.Snapshot{
		Mode:  orchestrator.ModeAutonomous,
		Queue: []string{"Design: a", "Implement: b"},
		Agents: []agent.State{
			{Name: "ARCHITECT", Capability: scheduler.CapabilityArchitect, Role: "System Architect", Status: agent.StatusIdle},
			{Name: "ENGINEER", Capability: scheduler.CapabilityEngineer, Role: "Senior Engineer", Status: agent.StatusWorking, CurrentTask: "Implement: c"},
		},
		Memory: []memory.Entry{{Seq: 1, Source: "SYSTEM", Level: memory.LevelInfo, Message: "hello"}},
	}}
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	m := New(fc, bus, nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	return updated.(Model), fc
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		updated, _ := m.Update(k)
		m = updated.(Model)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestFocusCycling(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Equal(t, PaneAgents, m.focusedPane)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, PaneQueue, m.focusedPane)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyShiftTab}, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, PaneMemory, m.focusedPane)

	m = press(t, m, runes(KeyPane1))
	assert.Equal(t, PaneAgents, m.focusedPane)
}

func TestRemoveAndMoveOnlyInQueuePane(t *testing.T) {
	m, fc := newTestModel(t)

	m = press(t, m, runes(KeyRemove))
	assert.Empty(t, fc.removed, "remove ignored outside the queue pane")

	m = press(t, m, runes(KeyPane2), runes(KeyMoveDown))
	assert.Equal(t, [][2]int{{0, 1}}, fc.moved)
	assert.Equal(t, 1, m.queuePane.Selected())

	m = press(t, m, runes(KeyRemove))
	assert.Equal(t, []int{1}, fc.removed)
	assert.Equal(t, []string{"Design: a"}, m.queuePane.tasks)
}

func TestMoveOutOfRangeShowsError(t *testing.T) {
	m, fc := newTestModel(t)

	m = press(t, m, runes(KeyPane2), runes(KeyMoveUp))
	assert.Empty(t, fc.moved)
	require.Error(t, m.lastErr)
	assert.Contains(t, m.View(), "index out of range")
}

func TestPauseToggles(t *testing.T) {
	m, fc := newTestModel(t)

	m = press(t, m, runes(KeyPause))
	assert.Equal(t, 1, fc.started)
	assert.True(t, m.snapshot.Running)

	press(t, m, runes(KeyPause))
	assert.Equal(t, 1, fc.stopped)
}

func TestEventsTriggerDebouncedRefresh(t *testing.T) {
	m, fc := newTestModel(t)
	before := fc.snapshots

	updated, cmd := m.Update(events.TickEvent{Iteration: 1})
	m = updated.(Model)
	assert.NotNil(t, cmd)
	updated, _ = m.Update(events.TickEvent{Iteration: 2})
	m = updated.(Model)

	// A stale tag is ignored.
	updated, _ = m.Update(refreshMsg{tag: 1})
	m = updated.(Model)
	assert.Equal(t, before, fc.snapshots)

	fc.snap.StalledTask = "make coffee"
	updated, _ = m.Update(refreshMsg{tag: 2})
	m = updated.(Model)
	assert.Equal(t, before+1, fc.snapshots)
	assert.Contains(t, m.View(), "STALLED")
}

func TestViewShowsPanes(t *testing.T) {
	m, _ := newTestModel(t)
	view := m.View()

	assert.Contains(t, view, "Agents")
	assert.Contains(t, view, "ARCHITECT")
	assert.Contains(t, view, "Task Backlog")
	assert.Contains(t, view, "Design: a")
	assert.Contains(t, view, "System Logs")
	assert.Contains(t, view, "hello")
}

func TestTaskFormOpensAndEscCloses(t *testing.T) {
	m, _ := newTestModel(t)

	m = press(t, m, runes(KeyNewTask))
	assert.True(t, m.taskForm.IsVisible())

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.taskForm.IsVisible())
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t)

	updated, cmd := m.Update(runes(KeyQuit))
	require.NotNil(t, cmd)
	assert.Equal(t, "Goodbye!\n", updated.(Model).View())
}

func TestApprovalsRoundTrip(t *testing.T) {
	a := NewApprovals()
	defer a.Close()

	result := make(chan bool, 1)
	go func() {
		ok, err := a.Decide(context.Background(), agent.ApprovalRequest{Agent: "ENGINEER", Tool: "file_write"})
		assert.NoError(t, err)
		result <- ok
	}()

	msg := a.wait()()
	p, ok := msg.(approvalPrompt)
	require.True(t, ok, "expected an approval prompt, got %T", msg)
	assert.Equal(t, "file_write", p.req.Tool)
	p.reply <- true

	select {
	case ok := <-result:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Decide did not return")
	}
}

func TestApprovalsClosed(t *testing.T) {
	a := NewApprovals()
	a.Close()
	a.Close()

	_, err := a.Decide(context.Background(), agent.ApprovalRequest{})
	assert.ErrorIs(t, err, ErrDashboardClosed)
	assert.Nil(t, a.wait()())
}

func TestApprovalsHonourContext(t *testing.T) {
	a := NewApprovals()
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Decide(ctx, agent.ApprovalRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDescribeArgsSorted(t *testing.T) {
	got := describeArgs(agent.ApprovalRequest{Task: "Implement: x", Args: map[string]string{"filepath": "a.py", "content": "x"}})
	assert.Equal(t, "Task: Implement: x\ncontent: x\nfilepath: a.py", got)
}
