package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Topic() string
}

// Topic constants
const (
	TopicAgent        = "agent"
	TopicTask         = "task"
	TopicMemory       = "memory"
	TopicOrchestrator = "orchestrator"
)

// Event type constants
const (
	EventTypeAgentStatus   = "agent.status"
	EventTypeTaskQueued    = "task.queued"
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskFailed    = "task.failed"
	EventTypeTaskTimeout   = "task.timeout"
	EventTypeMemoryEntry   = "memory.entry"
	EventTypeQueueStalled  = "queue.stalled"
	EventTypeTick          = "orchestrator.tick"
)

// AgentStatusEvent is published when an agent changes status.
type AgentStatusEvent struct {
	Agent     string
	From      string
	To        string
	Timestamp time.Time
}

func (e AgentStatusEvent) EventType() string { return EventTypeAgentStatus }
func (e AgentStatusEvent) Topic() string     { return TopicAgent }

// TaskQueuedEvent is published when a task enters the queue.
type TaskQueuedEvent struct {
	Task       string
	HeadOfLine bool
	FollowUp   bool // generated by a completion rather than submitted
	Timestamp  time.Time
}

func (e TaskQueuedEvent) EventType() string { return EventTypeTaskQueued }
func (e TaskQueuedEvent) Topic() string     { return TopicTask }

// TaskStartedEvent is published when an agent picks up a task.
type TaskStartedEvent struct {
	Agent     string
	Task      string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) Topic() string     { return TopicTask }

// TaskCompletedEvent is published when an agent finishes a task successfully.
type TaskCompletedEvent struct {
	Agent     string
	Task      string
	Result    string
	Attempts  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) Topic() string     { return TopicTask }

// TaskFailedEvent is published when an agent exhausts its attempts or is
// cancelled.
type TaskFailedEvent struct {
	Agent     string
	Task      string
	Result    string
	Attempts  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) Topic() string     { return TopicTask }

// TaskTimeoutEvent is published when a task exceeds the agent timeout.
type TaskTimeoutEvent struct {
	Agent     string
	Task      string
	Timeout   time.Duration
	Requeued  bool
	Timestamp time.Time
}

func (e TaskTimeoutEvent) EventType() string { return EventTypeTaskTimeout }
func (e TaskTimeoutEvent) Topic() string     { return TopicTask }

// MemoryEntryEvent mirrors a shared-memory append.
type MemoryEntryEvent struct {
	Seq       uint64
	Source    string
	Level     string
	Message   string
	Timestamp time.Time
}

func (e MemoryEntryEvent) EventType() string { return EventTypeMemoryEntry }
func (e MemoryEntryEvent) Topic() string     { return TopicMemory }

// QueueStalledEvent is published once when the head task stops being
// routable.
type QueueStalledEvent struct {
	Task      string
	Timestamp time.Time
}

func (e QueueStalledEvent) EventType() string { return EventTypeQueueStalled }
func (e QueueStalledEvent) Topic() string     { return TopicOrchestrator }

// TickEvent is published after every tick.
type TickEvent struct {
	Iteration int
	Assigned  int
	QueueLen  int
	Stalled   bool
	Timestamp time.Time
}

func (e TickEvent) EventType() string { return EventTypeTick }
func (e TickEvent) Topic() string     { return TopicOrchestrator }
