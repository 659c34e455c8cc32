package orchestrator

import (
	"fmt"
	"time"

	"github.com/dweebuild/dweebuild/internal/agent"
	"github.com/dweebuild/dweebuild/internal/memory"
)

// Snapshot is a serialisable view of a session. Restoring it rebuilds
// everything except reasoning calls that were in flight.
type Snapshot struct {
	SessionID   string            `json:"session_id"`
	Mode        Mode              `json:"mode"`
	Running     bool              `json:"running"`
	Iteration   int               `json:"iteration"`
	Queue       []string          `json:"queue"`
	Agents      []agent.State     `json:"agents"`
	Memory      []memory.Entry    `json:"memory"`
	Context     map[string]string `json:"context,omitempty"`
	StalledTask string            `json:"stalled_task,omitempty"`
	TakenAt     time.Time         `json:"taken_at"`
}

// Agent returns the state of the named agent.
func (s Snapshot) Agent(name string) (agent.State, bool) {
	for _, a := range s.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return agent.State{}, false
}

// Snapshot captures the current session. memLimit bounds the memory entries
// included; memLimit <= 0 includes all of them.
func (o *Orchestrator) Snapshot(memLimit int) Snapshot {
	o.mu.Lock()
	s := Snapshot{
		SessionID:   o.sessionID,
		Mode:        o.cfg.Policy.Mode,
		Running:     o.running,
		Iteration:   o.iterations,
		StalledTask: o.stalledTask,
	}
	o.mu.Unlock()

	s.Queue = o.queue.Snapshot()
	s.Agents = o.Agents()
	s.Memory = o.mem.Recent(memLimit)
	s.Context = o.mem.ContextMap()
	s.TakenAt = o.now()
	return s
}

// Restore loads a snapshot into an orchestrator whose roster is already
// registered. Agents that were WORKING come back IDLE and their task is
// put back at the head of the queue. The orchestrator stays stopped.
func (o *Orchestrator) Restore(s Snapshot) error {
	roster := o.roster()
	byName := make(map[string]*agent.Agent, len(roster))
	for _, a := range roster {
		byName[a.Name()] = a
	}
	for _, st := range s.Agents {
		if _, ok := byName[st.Name]; !ok {
			return fmt.Errorf("restoring agent %q: %w", st.Name, ErrUnknownAgent)
		}
	}

	o.queue.Restore(s.Queue)
	var interrupted []string
	for _, st := range s.Agents {
		if st.Status == agent.StatusWorking {
			if st.CurrentTask != "" {
				interrupted = append(interrupted, st.CurrentTask)
			}
			st.Status = agent.StatusIdle
			st.CurrentTask = ""
		}
		byName[st.Name].Restore(st)
	}
	// Reverse order keeps the interrupted tasks in roster order at the head.
	for i := len(interrupted) - 1; i >= 0; i-- {
		_ = o.queue.Enqueue(interrupted[i], 1)
	}

	o.mem.Restore(s.Memory)
	o.mem.RestoreContext(s.Context)

	o.mu.Lock()
	if s.SessionID != "" {
		o.sessionID = s.SessionID
	}
	o.iterations = s.Iteration
	o.stalledTask = s.StalledTask
	o.running = false
	o.mu.Unlock()

	o.mem.Append(Source, memory.LevelInfo, fmt.Sprintf("Session %s restored: %d queued, %d re-queued.", s.SessionID, len(s.Queue), len(interrupted)))
	return nil
}
